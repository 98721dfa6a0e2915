package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/treefix50/streamit/internal/catalog"
	xlog "github.com/treefix50/streamit/internal/log"
	"github.com/treefix50/streamit/internal/playback"
	"github.com/treefix50/streamit/internal/server"
)

var (
	serveAddr string
	serveCORS bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Listen = serveAddr
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", false, "allow cross-origin API requests")
}

func runServe(parent context.Context) error {
	logger := xlog.Base()
	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, opened, err := openWatchStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := opened.close(); err != nil {
			logger.Warn().Err(err).Msg("closing storage backend failed")
		}
	}()

	cat, err := catalog.New(afero.NewOsFs(), cfg.CatalogDir, xlog.WithComponent("catalog"))
	if err != nil {
		return err
	}
	if cfg.WatchCatalog {
		go func() {
			if err := cat.Watch(ctx); err != nil {
				logger.Error().Err(err).Msg("catalog watcher stopped")
			}
		}()
	}

	sessions := playback.NewManager(store, playback.ManagerOptions{
		IdleTimeout: cfg.Sessions.IdleTimeout,
		Logger:      xlog.WithComponent("playback"),
	})

	s := server.New(server.Options{
		Addr:                  cfg.Listen,
		MediaDir:              cfg.MediaDir,
		CORS:                  serveCORS,
		RequestsPerMinute:     cfg.RateLimit.RequestsPerMinute,
		ImportInterval:        cfg.RateLimit.ImportInterval,
		CatalogReloadInterval: cfg.CatalogReloadInterval,
		Logger:                xlog.WithComponent("http"),
	}, server.Deps{
		Catalog:  cat,
		Store:    store,
		Sessions: sessions,
		Health:   opened.health,
	})

	logger.Info().
		Str("addr", cfg.Listen).
		Str("catalog", cfg.CatalogDir).
		Str("backend", cfg.Storage.Backend).
		Msg("StreamIt listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			sessions.Close(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	// sessions are flushed before the deferred backend close runs
	logger.Info().Msg("shutting down...")
	if err := s.Close(); err != nil {
		logger.Warn().Err(err).Msg("shutdown incomplete")
	}
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
