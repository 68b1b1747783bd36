package uploads

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Worker prunes screenshots older than the retention window.
type Worker struct {
	store     *Store
	retention time.Duration
	poll      time.Duration
	logger    *slog.Logger
}

// NewWorker creates a Worker over store. If retention is <= 0 it defaults
// to 24h; if pollInterval is <= 0 it defaults to 10m.
func NewWorker(store *Store, retention, pollInterval time.Duration) *Worker {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Minute
	}
	return &Worker{
		store:     store,
		retention: retention,
		poll:      pollInterval,
		logger:    slog.Default(),
	}
}

// Run prunes on an interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := w.RunOnce(); err != nil {
			w.logger.Error("upload prune failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce deletes every upload older than the retention window and returns
// how many files were removed.
func (w *Worker) RunOnce() (int, error) {
	entries, err := os.ReadDir(w.store.Dir())
	if err != nil {
		return 0, fmt.Errorf("listing uploads: %w", err)
	}

	cutoff := time.Now().Add(-w.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(w.store.Dir(), entry.Name())
		if err := os.Remove(path); err != nil {
			w.logger.Warn("could not prune upload", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		w.logger.Info("pruned stale uploads", "count", removed)
	}
	return removed, nil
}
