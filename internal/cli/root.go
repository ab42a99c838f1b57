// Package cli implements the chamicore-abbrev command line.
package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// BuildInfo carries the values stamped in at build time via -ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// NewRootCommand assembles the command tree. All command output goes to out.
func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chamicore-abbrev",
		Short:         "Abbreviation glossary service",
		Long:          "chamicore-abbrev stores abbreviations with their expansions and serves them as HTML pages and a JSON search endpoint.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)

	cmd.AddCommand(newServeCommand(build))
	cmd.AddCommand(newMigrateCommand(out))
	cmd.AddCommand(newSeedCommand(out))
	cmd.AddCommand(newSearchCommand(out))
	cmd.AddCommand(newVersionCommand(out, build))
	return cmd
}
