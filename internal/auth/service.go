// Package auth implements optional API-key authentication for the profile
// backend. Keys live in clients.json in the data directory, which is watched
// and reloaded on change. The file may carry // comments and trailing commas.
// With no keys configured the backend is open.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/brianhealey/hadash/internal/fswatch"
)

const clientsFileName = "clients.json"

// Client is one dashboard allowed to reach the backend, keyed by name in
// clients.json.
type Client struct {
	AccessKey string `json:"access_key"`
	Disabled  bool   `json:"disabled,omitempty"`
}

func (c Client) active() bool { return c.AccessKey != "" && !c.Disabled }

// Service holds the current client table.
type Service struct {
	path string

	mu      sync.RWMutex
	clients map[string]Client

	watch *fswatch.Watch
}

// NewService loads clients.json from dir and keeps it current. A missing file
// (or directory) means open mode; a file that does not parse is an error.
func NewService(dir string) (*Service, error) {
	s := &Service{path: filepath.Join(dir, clientsFileName)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	watch, err := fswatch.File("auth", s.path, func() {
		if err := s.Reload(); err != nil {
			slog.Warn("auth: keeping previous clients", "err", err)
		}
	})
	if err != nil {
		slog.Warn("auth: clients.json edits need a restart", "err", err)
	}
	s.watch = watch
	return s, nil
}

// Path returns the clients.json path this service reads.
func (s *Service) Path() string { return s.path }

// Reload re-reads clients.json. On a parse error the current table is kept.
func (s *Service) Reload() error {
	clients := map[string]Client{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("auth: read %s: %w", clientsFileName, err)
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &clients); err != nil {
			return fmt.Errorf("auth: parse %s: %w", clientsFileName, err)
		}
	}

	s.mu.Lock()
	s.clients = clients
	s.mu.Unlock()
	slog.Debug("auth: clients loaded", "count", len(clients))
	return nil
}

// IsOpenMode reports whether no active client exists, in which case every
// request is let through.
func (s *Service) IsOpenMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.active() {
			return false
		}
	}
	return true
}

// VerifyKey returns the name of the active client holding key. Keys are
// compared in constant time. The empty key never matches.
func (s *Service) VerifyKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, c := range s.clients {
		if c.active() && subtle.ConstantTimeCompare([]byte(key), []byte(c.AccessKey)) == 1 {
			return name, true
		}
	}
	return "", false
}

// Close stops watching clients.json.
func (s *Service) Close() {
	s.watch.Close()
}
