// Package watch reports files that disappear from the folder under review
// because some other process removed or renamed them.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher follows one directory at a time.
type Watcher struct {
	fs     *fsnotify.Watcher
	onGone func(path string)

	mu  sync.Mutex
	dir string
}

// New creates a Watcher that calls onGone with the absolute path of every
// entry removed from, or renamed out of, the followed directory.
func New(onGone func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &Watcher{fs: fw, onGone: onGone}, nil
}

// Follow switches the watch to dir. Watching is not recursive.
func (w *Watcher) Follow(dir string) error {
	dir = filepath.Clean(dir)

	w.mu.Lock()
	defer w.mu.Unlock()
	if dir == w.dir {
		return nil
	}
	if w.dir != "" {
		if err := w.fs.Remove(w.dir); err != nil {
			slog.Debug("watch: remove previous dir", "dir", w.dir, "error", err)
		}
		w.dir = ""
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	w.dir = dir
	slog.Debug("watch: following", "dir", dir)
	return nil
}

// Run dispatches events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			followed := w.dir
			w.mu.Unlock()
			if filepath.Dir(ev.Name) != followed {
				continue
			}
			slog.Debug("watch: entry gone", "path", ev.Name, "op", ev.Op.String())
			w.onGone(ev.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch: error", "error", err)
		}
	}
}
