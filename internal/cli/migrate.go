package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/config"
)

func newMigrateCommand(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			db, _, version, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			_, err = fmt.Fprintf(out, "schema version %d (%s)\n", version, cfg.DBDriver)
			return err
		},
	}
}
