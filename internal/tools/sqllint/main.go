// Command sqllint checks that every inline SQL constant starts with a
// "--sql <uuid>" audit marker and that no two statements share a marker.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	findings, err := lintPaths(targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
		os.Exit(1)
	}
	if len(findings) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "sqllint: %d SQL audit marker problem(s)\n", len(findings))
	for _, f := range findings {
		fmt.Fprintf(os.Stderr, "  %s\n", f)
	}
	os.Exit(1)
}
