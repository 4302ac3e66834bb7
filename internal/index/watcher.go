package index

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the store when files under the knowledge root change.
// Events are debounced so a burst of writes triggers a single reload.
type Watcher struct {
	store    *Store
	logger   *zap.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher for the given store.
func NewWatcher(store *Store, logger *zap.Logger) *Watcher {
	return &Watcher{
		store:    store,
		logger:   logger,
		debounce: 2 * time.Second,
	}
}

// Run watches the knowledge root until ctx is cancelled. Subdirectories are
// watched too; fsnotify does not recurse on its own.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	addAll := func() {
		_ = filepath.WalkDir(w.store.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if err := fsw.Add(path); err != nil {
				w.logger.Warn("Failed to watch directory", zap.String("path", path), zap.Error(err))
			}
			return nil
		})
	}
	addAll()

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Knowledge watcher error", zap.Error(err))
		case <-pending:
			w.logger.Info("Knowledge base changed, reloading index")
			if err := w.store.Reload(); err != nil {
				w.logger.Warn("Reload after change failed", zap.Error(err))
			}
			// New directories may have appeared since the last scan.
			addAll()
		}
	}
}
