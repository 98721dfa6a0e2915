package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/treefix50/streamit/internal/config"
	"github.com/treefix50/streamit/internal/localstorage"
	xlog "github.com/treefix50/streamit/internal/log"
	"github.com/treefix50/streamit/internal/server"
	"github.com/treefix50/streamit/internal/storage"
	"github.com/treefix50/streamit/internal/watchstate"
)

// openedBackend is a local storage backend plus what the caller must release and may health-check.
type openedBackend struct {
	backend localstorage.Backend
	health  server.HealthChecker
	close   func() error
}

func openBackend(ctx context.Context, sc config.StorageConfig) (openedBackend, error) {
	logger := xlog.WithComponent("localstorage")
	switch sc.Backend {
	case "sqlite":
		if sc.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(sc.SQLitePath), 0o755); err != nil {
				return openedBackend{}, err
			}
		}
		store, err := storage.Open(sc.SQLitePath, storage.Options{
			BusyTimeout: 5 * time.Second,
			Synchronous: "NORMAL",
		})
		if err != nil {
			return openedBackend{}, fmt.Errorf("open sqlite %s: %w", sc.SQLitePath, err)
		}
		return openedBackend{backend: store, health: store, close: store.Close}, nil
	case "file":
		store, err := localstorage.NewFile(sc.FileDir)
		if err != nil {
			return openedBackend{}, err
		}
		return openedBackend{backend: store, close: func() error { return nil }}, nil
	case "redis":
		store, err := localstorage.NewRedis(ctx, localstorage.RedisConfig{
			Addr:      sc.Redis.Addr,
			Password:  sc.Redis.Password,
			DB:        sc.Redis.DB,
			KeyPrefix: sc.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			return openedBackend{}, err
		}
		return openedBackend{backend: store, close: store.Close}, nil
	case "memory":
		logger.Warn().Msg("memory backend selected: watch progress is lost on exit")
		return openedBackend{backend: localstorage.NewMemory(), close: func() error { return nil }}, nil
	}
	return openedBackend{}, fmt.Errorf("%w: %q", localstorage.ErrUnknownBackend, sc.Backend)
}

func openWatchStore(ctx context.Context, sc config.StorageConfig) (*watchstate.Store, openedBackend, error) {
	opened, err := openBackend(ctx, sc)
	if err != nil {
		return nil, openedBackend{}, err
	}
	store := watchstate.NewStore(opened.backend,
		watchstate.WithKey(sc.Key),
		watchstate.WithLogger(xlog.WithComponent("watchstate")),
	)
	return store, opened, nil
}
