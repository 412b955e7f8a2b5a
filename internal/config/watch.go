package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls onChange with the reloaded Config each time
// the file is written or replaced. It runs until ctx is cancelled.
//
// A reload that fails (invalid YAML, failed validation) is logged and the
// previous config stays active; onChange is not called.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// The directory is watched so atomic saves (write temp, rename over)
	// are seen as well as in-place writes.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	logger.Info("watching for changes", "action", "watch", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadFromFile(path)
			if err != nil {
				logger.Error("reload failed, keeping previous config", "action", "reload", "path", path, "error", err)
				continue
			}

			logger.Info("config reloaded", "action", "reload", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "action", "watch", "error", err)
		}
	}
}
