package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-abbrev/pkg/client"
)

const defaultServerURL = "http://localhost:5000"

func newSearchCommand(out io.Writer) *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search abbreviations on a running server",
		Long:  "Search a running server for abbreviations containing the query (case-insensitive). Without a query every entry is listed.",
		Example: "  chamicore-abbrev search api\n" +
			"  chamicore-abbrev search --url http://glossary:5000 --json ml",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			c, err := client.New(client.Config{BaseURL: serverURL, Timeout: timeout})
			if err != nil {
				return err
			}
			items, err := c.Search(cmd.Context(), query)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ABBREVIATION\tFULL FORM\tDESCRIPTION")
			for _, item := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", item.Abbreviation, item.FullForm, item.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Base URL of the chamicore-abbrev server")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Per-request timeout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}
