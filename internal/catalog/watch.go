package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 300 * time.Millisecond

// Watch reloads the catalog when one of its data files changes on disk. It blocks until ctx is
// done. The catalog directory must be a real OS path.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// watch the directory: editors replace files by rename, which drops a per-file watch
	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", c.dir, err)
	}
	c.logger.Info().Str("event", "catalog.watcher_started").Str("path", c.dir).Msg("watching catalog for changes")

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("event", "catalog.watcher_stopped").Msg("catalog watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if name != FilmsFile && name != SeriesFile {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				c.logger.Debug().Str("file", name).Str("op", event.Op.String()).Msg("catalog file changed")
				debounce.Reset(reloadDebounce)
			}

		case <-debounce.C:
			if err := c.Reload(); err != nil {
				c.logger.Error().Err(err).Str("event", "catalog.reload_failed").Msg("catalog reload failed, keeping previous contents")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error().Err(err).Str("event", "catalog.watcher_error").Msg("catalog watcher error")
		}
	}
}
