package profileserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/brianhealey/hadash/internal/profiles"
	"github.com/brianhealey/hadash/internal/snapshot"
)

// ErrNotFound is returned for an unknown profile id.
var ErrNotFound = errors.New("profileserver: profile not found")

// Store keeps profiles in SQLite. Writes are last-write-wins per id.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("profileserver: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		ha_user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		device_label TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_user ON profiles(ha_user_id, created_at);
	`
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("profileserver: sqlite pragma: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("profileserver: create schema: %w", err)
	}
	return nil
}

// List returns every profile of userID, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]*profiles.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ha_user_id, name, device_label, data, created_at, updated_at
		FROM profiles WHERE ha_user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("profileserver: list: %w", err)
	}
	defer rows.Close()

	out := []*profiles.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns profile id.
func (s *Store) Get(ctx context.Context, id string) (*profiles.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ha_user_id, name, device_label, data, created_at, updated_at
		FROM profiles WHERE id = ?
	`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Create stores in under a new id.
func (s *Store) Create(ctx context.Context, in profiles.Input) (*profiles.Profile, error) {
	data, err := json.Marshal(in.Data)
	if err != nil {
		return nil, fmt.Errorf("profileserver: encode data: %w", err)
	}
	now := s.now().UTC()
	p := &profiles.Profile{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Name:        in.Name,
		DeviceLabel: in.DeviceLabel,
		Data:        in.Data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, ha_user_id, name, device_label, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.Name, p.DeviceLabel, string(data), now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("profileserver: insert: %w", err)
	}
	return p, nil
}

// Update replaces the name, device label and data of profile id.
func (s *Store) Update(ctx context.Context, id string, in profiles.Input) (*profiles.Profile, error) {
	data, err := json.Marshal(in.Data)
	if err != nil {
		return nil, fmt.Errorf("profileserver: encode data: %w", err)
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET name = ?, device_label = ?, data = ?, updated_at = ?
		WHERE id = ?
	`, in.Name, in.DeviceLabel, string(data), now.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("profileserver: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes profile id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("profileserver: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*profiles.Profile, error) {
	var (
		p                profiles.Profile
		data             string
		created, updated int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.DeviceLabel, &data, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("profileserver: scan: %w", err)
	}
	// Stored data was validated on the way in; a row that no longer decodes
	// comes back with an invalid snapshot rather than failing the whole list.
	if err := json.Unmarshal([]byte(data), &p.Data); err != nil {
		p.Data = snapshot.Snapshot{}
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return &p, nil
}
