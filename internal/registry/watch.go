package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/agentx-labs/exthost/internal/logging"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce settles bursts of writes from editors before reloading.
const DefaultDebounce = 200 * time.Millisecond

// WatchFunc receives each reloaded index, or the error that prevented it.
type WatchFunc func(*Index, error)

// Watch reloads the index at path whenever it changes and calls fn with the
// result, until ctx ends. The parent directory is watched so replacing the
// file atomically is noticed.
func Watch(ctx context.Context, path string, logger *zap.Logger, fn WatchFunc) error {
	logger = logging.OrNop(logger)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logger.Debug("registry changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(DefaultDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("registry watcher error", zap.Error(err))
		case <-timer.C:
			fn(Load(abs))
		}
	}
}
