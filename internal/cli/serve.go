package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/catalog"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/config"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/events"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/server"
)

func newServeCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  "Run the HTTP server. Configuration is read from CHAMICORE_ABBREV_* environment variables.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			setupLogging(cfg, build)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, build, nil)
		},
	}
}

// runServer serves until ctx is done, then shuts down gracefully. ready, if
// non-nil, receives the bound listen address once the server accepts
// connections.
func runServer(ctx context.Context, cfg config.Config, build BuildInfo, ready func(addr string)) error {
	logger := log.With().Str("component", "main").Logger()
	logger.Info().
		Str("version", build.Version).
		Str("commit", build.Commit).
		Str("build_date", build.BuildDate).
		Msg("starting chamicore-abbrev")
	if cfg.DevMode {
		logger.Warn().Msg("DEV MODE ENABLED - using the built-in anti-forgery secret; do not use in production")
	}

	db, st, schemaVersion, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info().Str("driver", cfg.DBDriver).Int64("schema_version", schemaVersion).Msg("database ready")

	entries, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("loading seed catalog: %w", err)
	}
	if cfg.SeedOnStartup {
		inserted, err := st.SeedEntries(ctx, entries)
		if err != nil {
			return fmt.Errorf("seeding catalog on startup: %w", err)
		}
		logger.Info().Int("inserted", inserted).Msg("seeded catalog on startup")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			return err
		}
		publisher = natsPublisher
		logger.Info().Str("url", cfg.NATSURL).Str("prefix", cfg.NATSSubjectPrefix).Msg("publishing change events to NATS")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	srv, err := server.New(st, cfg, build.Version, build.Commit, build.BuildDate,
		server.WithCatalog(entries),
		server.WithPublisher(publisher),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		if serveErr := httpServer.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()
	if ready != nil {
		ready(ln.Addr().String())
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("HTTP server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("HTTP server shutdown error")
	}
	logger.Info().Msg("server stopped gracefully")
	return runErr
}
