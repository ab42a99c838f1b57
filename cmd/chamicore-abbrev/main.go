// Command chamicore-abbrev serves and manages the abbreviation glossary.
package main

import (
	"fmt"
	"os"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/cli"
)

// Set at build time via -ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	root := cli.NewRootCommand(os.Stdout, cli.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chamicore-abbrev: %v\n", err)
		os.Exit(1)
	}
}
