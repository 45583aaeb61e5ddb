package kv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brianhealey/hadash/internal/fswatch"
)

const (
	storeFileName = "settings.json"
	debounceDelay = 500 * time.Millisecond
)

// FileStore keeps every key in memory and persists the whole set as one JSON
// object with debounced atomic writes. Changes made to the file by another
// process are picked up through a file watch and reported to the OnReload
// callback.
type FileStore struct {
	mu          sync.Mutex
	path        string
	values      map[string]string
	timer       *time.Timer
	dirty       bool
	closed      bool
	lastWritten []byte
	onReload    func()
	watch       *fswatch.Watch
}

// NewFileStore opens (or creates on first write) the store file in dir.
// A missing file starts empty; a corrupt file is logged and starts empty.
func NewFileStore(dir string) (*FileStore, error) {
	s := &FileStore{
		path:   filepath.Join(dir, storeFileName),
		values: make(map[string]string),
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("kv: create store dir: %w", err)
	}
	if _, err := s.reload(); err != nil {
		return nil, err
	}

	watch, err := fswatch.File("kv", s.path, s.externalChange)
	if err != nil {
		slog.Warn("kv: external edits will not be picked up", "err", err)
		return s, nil
	}
	s.watch = watch
	return s, nil
}

// OnReload registers fn to run after the file was changed by another process
// and its contents replaced the in-memory values. fn runs on the watch
// goroutine without the store lock held, so it may read the store.
func (s *FileStore) OnReload(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = fn
}

// Path returns the file path used by this store.
func (s *FileStore) Path() string { return s.path }

// Get returns the value for key.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value and schedules a write.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.values[key] = value
	s.scheduleLocked()
	return nil
}

// Remove deletes key and schedules a write.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	s.scheduleLocked()
	return nil
}

// scheduleLocked (re)starts the debounce timer. The write happens after
// debounceDelay without further changes. Caller holds s.mu.
func (s *FileStore) scheduleLocked() {
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(debounceDelay, func() {
		if err := s.Flush(); err != nil {
			slog.Error("kv: failed to write store", "path", s.path, "err", err)
		}
	})
}

// Flush forces an immediate write of pending changes.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		return nil
	}
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.dirty = false
	s.lastWritten = data
	return nil
}

// Close flushes pending changes and stops the file watcher.
func (s *FileStore) Close() error {
	err := s.Flush()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.watch.Close()
	return err
}

// reload re-reads the file, unless it holds our own last write or we have
// unflushed changes that would be lost. It reports whether the in-memory
// values were replaced.
func (s *FileStore) reload() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("kv: read store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.dirty || bytes.Equal(data, s.lastWritten) {
		return false, nil
	}
	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		slog.Warn("kv: corrupt store file, ignoring", "path", s.path, "err", err)
		return false, nil
	}
	s.values = values
	s.lastWritten = data
	slog.Debug("kv: reloaded store", "path", s.path, "keys", len(values))
	return true, nil
}

func (s *FileStore) externalChange() {
	changed, err := s.reload()
	if err != nil {
		slog.Warn("kv: failed to reload store", "err", err)
		return
	}
	if !changed {
		return
	}
	s.mu.Lock()
	fn := s.onReload
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// writeAtomic writes to a temp file, then renames it over path.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

var (
	_ Store   = (*FileStore)(nil)
	_ Flusher = (*FileStore)(nil)
)
