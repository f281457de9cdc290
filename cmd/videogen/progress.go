package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"videogen/internal/lifecycle"
)

const barWidth = 30

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressReporter redraws a single bar on a terminal and prints one line per
// change otherwise.
type progressReporter struct {
	w    io.Writer
	tty  bool
	last string
	drew bool
}

func newProgressReporter(w io.Writer, tty bool) *progressReporter {
	return &progressReporter{w: w, tty: tty}
}

func (p *progressReporter) observe(o lifecycle.Observation) {
	if o.Err != nil {
		p.clear()
		fmt.Fprintf(p.w, "poll %d failed: %v\n", o.Attempt, o.Err)
		return
	}
	line := fmt.Sprintf("%-10s %3.0f%%", o.Status, o.Progress*100)
	if p.tty {
		filled := int(o.Progress * barWidth)
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
		fmt.Fprintf(p.w, "\r[%s] %s", bar, line)
		p.drew = true
		return
	}
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.w, line)
}

// done ends the bar line so later output starts on a fresh line.
func (p *progressReporter) done() {
	p.clear()
}

func (p *progressReporter) clear() {
	if p.drew {
		fmt.Fprintln(p.w)
		p.drew = false
	}
}
