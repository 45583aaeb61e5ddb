// Package snapshot converts between the scattered per-setting keys of the
// key-value store and one versioned configuration document.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// CurrentVersion is the document version written by Collect.
const CurrentVersion = 1

// InvalidSnapshotMessage is the user-visible message for a structurally
// invalid snapshot.
const InvalidSnapshotMessage = "Invalid snapshot data"

var (
	// ErrInvalidSnapshot is returned when a document fails IsValid.
	ErrInvalidSnapshot = errors.New(InvalidSnapshotMessage)

	// ErrUnknownSetting is returned for a key that has no descriptor.
	ErrUnknownSetting = errors.New("snapshot: unknown setting")

	// ErrInvalidValue is returned when a descriptor rejects a value.
	ErrInvalidValue = errors.New("snapshot: invalid value")
)

// Section names one of the two top-level mappings of a Snapshot.
type Section string

const (
	SectionLayout     Section = "layout"
	SectionAppearance Section = "appearance"
)

// Snapshot is the versioned configuration document. Collect always produces
// non-nil Layout and Appearance maps; treat a Snapshot as read-only once built.
type Snapshot struct {
	Version    int            `json:"version"`
	Layout     map[string]any `json:"layout"`
	Appearance map[string]any `json:"appearance"`
}

// New returns an empty, valid snapshot at the current version.
func New() Snapshot {
	return Snapshot{
		Version:    CurrentVersion,
		Layout:     map[string]any{},
		Appearance: map[string]any{},
	}
}

// Section returns the mapping for sec, or nil for an unknown section.
func (s Snapshot) Section(sec Section) map[string]any {
	switch sec {
	case SectionLayout:
		return s.Layout
	case SectionAppearance:
		return s.Appearance
	}
	return nil
}

// IsValid is the structural check every remote write passes through:
// version is a positive integer and both sections are present mappings.
// Individual values are not inspected.
func IsValid(s Snapshot) bool {
	return s.Version >= 1 && s.Layout != nil && s.Appearance != nil
}

// UnmarshalJSON decodes leniently: a version that is not a positive integer
// becomes 0 and a section that is not a JSON object becomes nil, so the
// result fails IsValid instead of failing the surrounding decode.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version    json.RawMessage `json:"version"`
		Layout     json.RawMessage `json:"layout"`
		Appearance json.RawMessage `json:"appearance"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Snapshot{
		Version:    decodeVersion(raw.Version),
		Layout:     decodeSection(raw.Layout),
		Appearance: decodeSection(raw.Appearance),
	}
	return nil
}

// Decode parses a remote document and rejects it unless it passes IsValid.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if !IsValid(s) {
		return Snapshot{}, ErrInvalidSnapshot
	}
	return s, nil
}

func decodeVersion(raw json.RawMessage) int {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	if v < 1 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0
	}
	return int(v)
}

func decodeSection(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
