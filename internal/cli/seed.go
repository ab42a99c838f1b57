package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/catalog"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/config"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/server"
	"git.cscs.ch/openchami/chamicore-abbrev/pkg/client"
)

func newSeedCommand(out io.Writer) *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the built-in catalog",
		Long: "Insert every built-in catalog entry whose abbreviation is not stored yet. Running it again inserts nothing.\n\n" +
			"By default the configured database is seeded directly. With --url the request goes to a running server instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL != "" {
				c, err := client.New(client.Config{BaseURL: serverURL, Timeout: timeout})
				if err != nil {
					return err
				}
				msg, err := c.Seed(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, msg)
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			entries, err := catalog.Load()
			if err != nil {
				return fmt.Errorf("loading seed catalog: %w", err)
			}

			db, st, _, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			inserted, err := st.SeedEntries(cmd.Context(), entries)
			if err != nil {
				return fmt.Errorf("seeding catalog: %w", err)
			}
			_, err = fmt.Fprint(out, server.SeedMessage(inserted))
			return err
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "", "Seed through a running server at this base URL instead of the local database")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Per-request timeout when --url is set")
	return cmd
}
