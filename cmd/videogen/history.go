package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"videogen/internal/domain"
)

func (c *cli) history(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Int("limit", 20, "number of runs to list, newest first")
	id := fs.String("id", "", "show one run in detail")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	history, err := c.openHistory(ctx)
	if err != nil {
		c.report(err, "")
		return 1
	}
	defer history.Close()

	if *id != "" {
		job, err := history.GetByID(ctx, strings.TrimSpace(*id))
		if errors.Is(err, domain.ErrNotFound) {
			fmt.Fprintf(c.stderr, "videogen: no run with id %q\n", *id)
			return 1
		}
		if err != nil {
			c.report(err, "")
			return 1
		}
		printJob(c, job)
		return 0
	}

	jobs, err := history.List(ctx, *limit)
	if err != nil {
		c.report(err, "")
		return 1
	}
	if len(jobs) == 0 {
		fmt.Fprintln(c.stdout, "no runs recorded yet")
		return 0
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tMODEL\tRATIO\tPROGRESS\tCREATED\tRESULT")
	for _, job := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
			job.ID, job.Status, job.Model, job.AspectRatio, job.Progress*100,
			job.CreatedAt.Local().Format(time.DateTime), resultSummary(job))
	}
	tw.Flush()
	return 0
}

func resultSummary(job domain.Job) string {
	switch job.Status {
	case domain.JobStatusSucceeded:
		return job.StorageKey
	case domain.JobStatusFailed:
		return fmt.Sprintf("%s: %s", job.ErrorKind, job.ErrorMessage)
	}
	return job.TaskID
}

func printJob(c *cli, job *domain.Job) {
	tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", job.ID)
	fmt.Fprintf(tw, "status:\t%s\n", job.Status)
	fmt.Fprintf(tw, "model:\t%s\n", job.Model)
	fmt.Fprintf(tw, "ratio:\t%s\n", job.AspectRatio)
	fmt.Fprintf(tw, "task:\t%s\n", job.TaskID)
	fmt.Fprintf(tw, "progress:\t%.0f%%\n", job.Progress*100)
	fmt.Fprintf(tw, "created:\t%s\n", job.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "updated:\t%s\n", job.UpdatedAt.Local().Format(time.DateTime))
	if job.StorageKey != "" {
		fmt.Fprintf(tw, "file:\t%s (%d bytes)\n", job.StorageKey, job.Bytes)
	}
	for _, url := range job.Outputs {
		fmt.Fprintf(tw, "output:\t%s\n", url)
	}
	if job.Status == domain.JobStatusFailed {
		fmt.Fprintf(tw, "error:\t%s: %s\n", job.ErrorKind, job.ErrorMessage)
	}
	if len(job.Diagnostic) > 0 {
		fmt.Fprintf(tw, "diagnostic:\t%s\n", job.Diagnostic)
	}
	fmt.Fprintf(tw, "spec:\t%s\n", job.SpecJSON)
	tw.Flush()
}
