package profiles

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/brianhealey/hadash/internal/snapshot"
)

// ErrUnknownProfile is returned by OverwriteProfile for an id the manager
// does not hold, since the update would have no device label to keep.
var ErrUnknownProfile = errors.New("profiles: unknown profile")

// Backend is the remote profile collection. *Client implements it.
type Backend interface {
	List(ctx context.Context, userID string) ([]*Profile, error)
	Get(ctx context.Context, id, userID string) (*Profile, error)
	Create(ctx context.Context, in Input) (*Profile, error)
	Update(ctx context.Context, id string, in Input) (*Profile, error)
	Remove(ctx context.Context, id, userID string) error
}

// SnapshotSource builds, validates and applies snapshots. *snapshot.Builder
// implements it.
type SnapshotSource interface {
	Collect() snapshot.Snapshot
	IsValid(snap snapshot.Snapshot) bool
	Apply(snap snapshot.Snapshot, setters snapshot.Setters) error
}

// Manager keeps the list of profiles known for one user. Every failure is
// reported through the single Err slot (last error wins) and leaves the list
// unchanged. Overlapping calls on the same profile id are not de-duplicated:
// the last write to reach the backend wins.
type Manager struct {
	backend Backend
	snaps   SnapshotSource
	userID  string

	mu       sync.Mutex
	profiles []*Profile
	loading  bool
	err      string
}

// NewManager returns a Manager bound to userID for its lifetime.
func NewManager(backend Backend, snaps SnapshotSource, userID string) *Manager {
	return &Manager{
		backend:  backend,
		snaps:    snaps,
		userID:   userID,
		profiles: []*Profile{},
	}
}

// UserID returns the user the manager is bound to.
func (m *Manager) UserID() string { return m.userID }

// Profiles returns the held list, most recently saved first. The slice is a
// copy; the profiles are shared and must not be modified.
func (m *Manager) Profiles() []*Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Profile, len(m.profiles))
	copy(out, m.profiles)
	return out
}

// Loading reports whether Initialize is in progress.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Err returns the last recorded error message, or "".
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Initialize fetches the user's profiles once and replaces the held list.
// On failure the previous list is kept.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	list, err := m.backend.List(ctx, m.userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false
	if err != nil {
		m.err = err.Error()
		slog.Warn("profiles: list failed", "user", m.userID, "err", err)
		return err
	}
	m.profiles = list
	m.err = ""
	slog.Debug("profiles: loaded", "user", m.userID, "count", len(list))
	return nil
}

// SaveProfile collects the current configuration and stores it as a new
// profile. An invalid snapshot fails before any network call. The created
// profile is prepended to the held list without a re-fetch.
func (m *Manager) SaveProfile(ctx context.Context, name, deviceLabel string) (*Profile, error) {
	snap, err := m.validSnapshot()
	if err != nil {
		return nil, err
	}

	p, err := m.backend.Create(ctx, Input{
		UserID:      m.userID,
		Name:        name,
		DeviceLabel: deviceLabel,
		Data:        snap,
	})
	if err != nil {
		m.fail("create", err)
		return nil, err
	}

	m.mu.Lock()
	m.profiles = prependProfile(m.profiles, p)
	m.err = ""
	m.mu.Unlock()
	slog.Info("profiles: saved", "id", p.ID, "name", p.Name)
	return p, nil
}

// OverwriteProfile replaces the data and name of an existing profile with the
// current configuration, keeping its device label. An empty name keeps the
// existing name.
func (m *Manager) OverwriteProfile(ctx context.Context, id, name string) (*Profile, error) {
	snap, err := m.validSnapshot()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	existing := findProfile(m.profiles, id)
	m.mu.Unlock()
	if existing == nil {
		m.fail("overwrite", ErrUnknownProfile)
		return nil, ErrUnknownProfile
	}
	if name == "" {
		name = existing.Name
	}

	p, err := m.backend.Update(ctx, id, Input{
		UserID:      m.userID,
		Name:        name,
		DeviceLabel: existing.DeviceLabel,
		Data:        snap,
	})
	if err != nil {
		m.fail("update", err)
		return nil, err
	}

	m.mu.Lock()
	m.profiles = replaceProfile(m.profiles, p)
	m.err = ""
	m.mu.Unlock()
	slog.Info("profiles: overwritten", "id", p.ID, "name", p.Name)
	return p, nil
}

// DeleteProfile removes a profile remotely and then from the held list.
func (m *Manager) DeleteProfile(ctx context.Context, id string) error {
	if err := m.backend.Remove(ctx, id, m.userID); err != nil {
		m.fail("delete", err)
		return err
	}

	m.mu.Lock()
	m.profiles = removeProfile(m.profiles, id)
	m.err = ""
	m.mu.Unlock()
	slog.Info("profiles: deleted", "id", id)
	return nil
}

// LoadProfile fetches a profile and applies its snapshot through setters.
func (m *Manager) LoadProfile(ctx context.Context, id string, setters snapshot.Setters) error {
	p, err := m.backend.Get(ctx, id, m.userID)
	if err != nil {
		m.fail("get", err)
		return err
	}
	if !m.snaps.IsValid(p.Data) {
		m.fail("load", snapshot.ErrInvalidSnapshot)
		return snapshot.ErrInvalidSnapshot
	}
	if err := m.snaps.Apply(p.Data, setters); err != nil {
		m.fail("apply", err)
		return err
	}

	m.mu.Lock()
	m.err = ""
	m.mu.Unlock()
	slog.Info("profiles: loaded profile", "id", p.ID, "name", p.Name)
	return nil
}

// validSnapshot collects and validates the current configuration. This is the
// only path to a remote write.
func (m *Manager) validSnapshot() (snapshot.Snapshot, error) {
	snap := m.snaps.Collect()
	if !m.snaps.IsValid(snap) {
		m.fail("validate", snapshot.ErrInvalidSnapshot)
		return snapshot.Snapshot{}, snapshot.ErrInvalidSnapshot
	}
	return snap, nil
}

func (m *Manager) fail(op string, err error) {
	m.mu.Lock()
	m.err = err.Error()
	m.mu.Unlock()
	slog.Warn("profiles: operation failed", "op", op, "user", m.userID, "err", err)
}

// List reducers. Each returns a new slice and leaves its input untouched.

func prependProfile(list []*Profile, p *Profile) []*Profile {
	out := make([]*Profile, 0, len(list)+1)
	out = append(out, p)
	return append(out, list...)
}

func replaceProfile(list []*Profile, p *Profile) []*Profile {
	out := make([]*Profile, len(list))
	for i, existing := range list {
		if existing.ID == p.ID {
			out[i] = p
		} else {
			out[i] = existing
		}
	}
	return out
}

func removeProfile(list []*Profile, id string) []*Profile {
	out := make([]*Profile, 0, len(list))
	for _, existing := range list {
		if existing.ID != id {
			out = append(out, existing)
		}
	}
	return out
}

func findProfile(list []*Profile, id string) *Profile {
	for _, p := range list {
		if p.ID == id {
			return p
		}
	}
	return nil
}
