package worker

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a DatasetWatcher waits after the last write
// before reloading.
const DefaultSettle = 200 * time.Millisecond

// DatasetWatcher calls reload whenever a dataset file changes. Bursts of
// writes within the settle window collapse into one reload.
type DatasetWatcher struct {
	path   string
	settle time.Duration
	reload func(context.Context) error

	mu      sync.Mutex
	reloads int
}

// NewDatasetWatcher creates a watcher for path. A settle of zero uses
// DefaultSettle.
func NewDatasetWatcher(path string, settle time.Duration, reload func(context.Context) error) *DatasetWatcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &DatasetWatcher{
		path:   filepath.Clean(path),
		settle: settle,
		reload: reload,
	}
}

// Reloads returns how many reloads have completed successfully.
func (w *DatasetWatcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Run watches until ctx is cancelled. It returns an error only if the
// watch cannot be established.
func (w *DatasetWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watching the directory keeps the watch alive across atomic saves.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	slog.Info("worker started",
		"component", "worker",
		"worker", "dataset-watcher",
		"action", "worker_started",
		"path", w.path,
	)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "dataset-watcher",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.settle)
			} else {
				timer.Reset(w.settle)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.doReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("dataset watcher error",
				"component", "worker",
				"worker", "dataset-watcher",
				"action", "watch_error",
				"error", err,
			)
		}
	}
}

func (w *DatasetWatcher) doReload(ctx context.Context) {
	if err := w.reload(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("dataset reload failed",
			"component", "worker",
			"worker", "dataset-watcher",
			"action", "reload_failed",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	slog.Info("dataset reloaded",
		"component", "worker",
		"worker", "dataset-watcher",
		"action", "reloaded",
		"path", w.path,
	)
}
