package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"videogen/internal/domain"
)

type catalogView struct {
	Models      []domain.Model `json:"models"`
	Ratios      []string       `json:"ratios"`
	DefaultSeed uint32         `json:"default_seed"`
	MaxImages   int            `json:"max_images"`
}

func (c *cli) catalog(args []string) int {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	asJSON := fs.Bool("json", false, "print the catalog as JSON")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	view := catalogView{
		Models:      c.modelCatalog.Models(),
		DefaultSeed: domain.DefaultSeed,
		MaxImages:   domain.MaxReferenceImages,
	}
	for _, r := range domain.AllowedRatios {
		view.Ratios = append(view.Ratios, r.String())
	}

	if *asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			c.report(err, "")
			return 1
		}
		return 0
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tDURATIONS\tCREDITS/S\tIMAGE\tNOTE")
	for _, m := range view.Models {
		durations := make([]string, 0, len(m.Durations))
		for _, d := range m.Durations {
			durations = append(durations, strconv.Itoa(d)+"s")
		}
		image := "optional"
		if m.ImageRequired {
			image = "required"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", m.Name, strings.Join(durations, ","), m.CreditsPerSecond, image, m.Note)
	}
	tw.Flush()
	fmt.Fprintf(c.stdout, "\nratios: %s\n", strings.Join(view.Ratios, ", "))
	fmt.Fprintf(c.stdout, "default seed: %d, up to %d reference images\n", view.DefaultSeed, view.MaxImages)
	return 0
}
