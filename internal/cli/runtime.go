package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/config"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/store"
)

// setupLogging configures the global zerolog logger: console output in dev
// mode, JSON with unix-ms timestamps otherwise.
func setupLogging(cfg config.Config, build BuildInfo) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "abbrev").
		Str("version", build.Version).
		Logger()
}

// openStore opens the configured database and applies pending migrations.
// The caller owns the returned *sql.DB.
func openStore(ctx context.Context, cfg config.Config) (*sql.DB, *store.SQLStore, int64, error) {
	db, dialect, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("opening database: %w", err)
	}

	version, err := store.Migrate(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, nil, 0, fmt.Errorf("migrating database: %w", err)
	}
	return db, store.NewSQLStore(db, dialect), version, nil
}
