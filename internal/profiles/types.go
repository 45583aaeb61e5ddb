// Package profiles syncs dashboard snapshots with a remote per-user profile
// collection: an HTTP client for the collection and a Manager that keeps the
// local list of known profiles.
package profiles

import (
	"time"

	"github.com/brianhealey/hadash/internal/snapshot"
)

// UserHeader carries the user id on every mutating request so the backend can
// authorize independent of the request body.
const UserHeader = "X-HA-User-Id"

// Profile is a named, user-scoped, remotely stored snapshot.
type Profile struct {
	ID          string            `json:"id"`
	UserID      string            `json:"ha_user_id"`
	Name        string            `json:"name"`
	DeviceLabel string            `json:"device_label"`
	Data        snapshot.Snapshot `json:"data"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Input is the request body for create and update.
type Input struct {
	UserID      string            `json:"ha_user_id"`
	Name        string            `json:"name"`
	DeviceLabel string            `json:"device_label"`
	Data        snapshot.Snapshot `json:"data"`
}
