// Package maintenance runs the dashboard's background housekeeping: watching
// whether the profile backend is reachable and keeping daily snapshot backups.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brianhealey/hadash/internal/snapshot"
)

const (
	backupPrefix  = "hadash-snapshot-"
	backupSuffix  = ".json"
	backupMaxAge  = 90 * 24 * time.Hour
	checkInterval = 5 * time.Minute
	dialTimeout   = 3 * time.Second
)

// ErrBackupNotFound is returned by ReadBackup for an unknown backup name.
var ErrBackupNotFound = errors.New("maintenance: backup not found")

// dialFunc is a variable so tests can inject a mock dialer.
var dialFunc = func(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// Collector produces the snapshot to back up. *snapshot.Builder implements it.
type Collector interface {
	Collect() snapshot.Snapshot
}

// Service manages background maintenance goroutines.
type Service struct {
	backupDir   string
	snaps       Collector
	backendAddr string     // host:port of the profile backend; "" skips the check
	onOnline    func(bool) // callback when backend reachability changes

	lastOnline bool
	checked    bool
}

// New creates a new maintenance Service keeping backups under dataDir/backups.
func New(dataDir string, snaps Collector, backendAddr string, onOnline func(bool)) *Service {
	return &Service{
		backupDir:   BackupDir(dataDir),
		snaps:       snaps,
		backendAddr: backendAddr,
		onOnline:    onOnline,
	}
}

// BackupDir returns the backup directory under dataDir.
func BackupDir(dataDir string) string {
	return filepath.Join(dataDir, "backups")
}

// Start launches all background maintenance goroutines.
// Blocks until ctx is cancelled; all goroutines respect the context.
func (s *Service) Start(ctx context.Context) {
	if s.backendAddr != "" {
		go s.runCheckOnline(ctx)
	}
	go s.runBackup(ctx)

	// Block until cancelled
	<-ctx.Done()
}

// RunBackupNow writes a backup immediately and returns its path.
func (s *Service) RunBackupNow() (string, error) {
	return writeBackup(s.backupDir, s.snaps.Collect(), time.Now())
}

// runCheckOnline dials the profile backend every 5 minutes.
func (s *Service) runCheckOnline(ctx context.Context) {
	s.checkOnline()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkOnline()
		}
	}
}

// checkOnline fires onOnline on the first check and on every change.
func (s *Service) checkOnline() {
	conn, err := dialFunc("tcp", s.backendAddr, dialTimeout)
	online := err == nil
	if conn != nil {
		conn.Close()
	}

	if s.checked && online == s.lastOnline {
		return
	}
	s.checked = true
	s.lastOnline = online
	slog.Info("maintenance: profile backend reachability", "addr", s.backendAddr, "online", online)
	if s.onOnline != nil {
		s.onOnline(online)
	}
}

// runBackup performs daily backups at 2am.
func (s *Service) runBackup(ctx context.Context) {
	for {
		now := time.Now()
		// Next 2am
		next2am := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, now.Location())
		if !next2am.After(now) {
			next2am = next2am.Add(24 * time.Hour)
		}
		delay := next2am.Sub(now)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			path, err := s.RunBackupNow()
			if err != nil {
				slog.Error("maintenance: backup failed", "err", err)
			} else {
				slog.Info("maintenance: backup created", "file", path)
			}
		}
	}
}

// writeBackup stores snap as a dated JSON file in dir and prunes old ones.
// A second backup on the same day replaces the first.
func writeBackup(dir string, snap snapshot.Snapshot, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("maintenance: create backup dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("maintenance: encode snapshot: %w", err)
	}

	dest := filepath.Join(dir, backupPrefix+now.Format("2006-01-02")+backupSuffix)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("maintenance: write backup: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("maintenance: rename backup: %w", err)
	}

	pruneOldBackups(dir, backupMaxAge)
	return dest, nil
}

// ListBackups returns the backup file names in dataDir, oldest first.
func ListBackups(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(BackupDir(dataDir))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && isBackupName(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadBackup decodes the named backup. The name must be one ListBackups returns.
func ReadBackup(dataDir, name string) (snapshot.Snapshot, error) {
	if !isBackupName(name) || filepath.Base(name) != name {
		return snapshot.Snapshot{}, ErrBackupNotFound
	}
	data, err := os.ReadFile(filepath.Join(BackupDir(dataDir), name))
	if os.IsNotExist(err) {
		return snapshot.Snapshot{}, ErrBackupNotFound
	}
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("maintenance: read backup: %w", err)
	}
	return snapshot.Decode(data)
}

func isBackupName(name string) bool {
	return strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix)
}

// pruneOldBackups deletes backup files older than maxAge from backupDir.
func pruneOldBackups(backupDir string, maxAge time.Duration) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || !isBackupName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(backupDir, e.Name())
			if err := os.Remove(path); err != nil {
				slog.Warn("maintenance: failed to prune old backup", "file", path, "err", err)
			} else {
				slog.Info("maintenance: pruned old backup", "file", path)
			}
		}
	}
}
