// Package fswatch reports changes to a single file. The file's directory is
// watched rather than the file itself, so a write that renames a temp file
// over the target is seen the same as an in-place write.
package fswatch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watch is a running watch on one file.
type Watch struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// File calls onChange from a background goroutine each time path is written,
// created, renamed or removed. Events for other files in the directory are
// ignored. name prefixes log lines.
func File(name, path string, onChange func()) (*Watch, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%s: create watcher: %w", name, err)
	}
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("%s: watch %s: %w", name, filepath.Dir(path), err)
	}
	w := &Watch{watcher: watcher, done: make(chan struct{})}
	go w.loop(name, path, onChange)
	return w, nil
}

const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

func (w *Watch) loop(name, path string, onChange func()) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == path && event.Op&relevant != 0 {
				onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn(name+": watcher error", "err", err)
		}
	}
}

// Close stops the watch. It is safe on a nil Watch and safe to call twice.
func (w *Watch) Close() error {
	if w == nil {
		return nil
	}
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
