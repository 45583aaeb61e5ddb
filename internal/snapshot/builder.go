package snapshot

import (
	"fmt"
	"log/slog"

	"github.com/brianhealey/hadash/internal/kv"
)

// Setters maps a setting key to the live update function of whatever UI is
// already rendering that setting. Missing entries are skipped.
type Setters map[string]func(value any)

// Builder collects a Snapshot from the store and applies one back to it.
// Collect and Apply assume exclusive use of the store for their duration;
// reads across keys are not transactional.
type Builder struct {
	store    kv.Store
	registry *Registry
}

// NewBuilder returns a Builder over store. A nil registry selects the
// dashboard registry.
func NewBuilder(store kv.Store, registry *Registry) *Builder {
	if registry == nil {
		registry = DashboardRegistry()
	}
	return &Builder{store: store, registry: registry}
}

// Registry returns the descriptor registry used by the builder.
func (b *Builder) Registry() *Registry { return b.registry }

// Collect reads every descriptor's key and assembles a snapshot. A missing
// or unparsable value degrades to the descriptor default; Collect never fails.
func (b *Builder) Collect() Snapshot {
	snap := New()
	for _, d := range b.registry.descriptors {
		snap.Section(d.Section)[d.Key] = b.read(d)
	}
	return snap
}

// Defaults returns a snapshot holding every descriptor's default value.
func (b *Builder) Defaults() Snapshot {
	snap := New()
	for _, d := range b.registry.descriptors {
		snap.Section(d.Section)[d.Key] = d.Default()
	}
	return snap
}

// Get returns the current typed value of one setting.
func (b *Builder) Get(key string) (any, error) {
	d, ok := b.registry.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	return b.read(d), nil
}

// IsValid reports whether snap passes the structural check.
func (b *Builder) IsValid(snap Snapshot) bool { return IsValid(snap) }

// Apply writes every setting present in snap to the store and then calls
// its live setter, one descriptor at a time in registry order. Settings absent
// from snap are left untouched. A value that cannot be serialized is skipped.
//
// A store write failure stops the walk and is returned. Every setting
// processed before it has both its stored value and its live setter updated.
func (b *Builder) Apply(snap Snapshot, setters Setters) error {
	applied := 0
	for _, d := range b.registry.descriptors {
		v, ok := snap.Section(d.Section)[d.Key]
		if !ok {
			continue
		}
		if _, err := b.write(d, v, setters); err != nil {
			if isStoreError(err) {
				return err
			}
			slog.Warn("snapshot: skipping invalid value", "key", d.Key, "value", v, "err", err)
			continue
		}
		applied++
	}
	slog.Debug("snapshot: applied", "settings", applied)
	return nil
}

// Set is the single-setting write-through used by live UI controls. It
// returns the normalized value that was stored and passed to the setter.
func (b *Builder) Set(key string, v any, setters Setters) (any, error) {
	d, ok := b.registry.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	return b.write(d, v, setters)
}

// Reset removes every stored setting so the next Collect yields defaults,
// and pushes the defaults to the live setters.
func (b *Builder) Reset(setters Setters) error {
	for _, d := range b.registry.descriptors {
		if err := b.store.Remove(d.StorageKey); err != nil {
			return &storeError{key: d.StorageKey, err: err}
		}
		if fn := setters[d.Key]; fn != nil {
			fn(d.Default())
		}
	}
	return nil
}

func (b *Builder) read(d Descriptor) any {
	raw, ok := b.store.Get(d.StorageKey)
	if !ok {
		return d.Default()
	}
	v, err := d.Parse(raw)
	if err != nil {
		slog.Debug("snapshot: unparsable stored value, using default",
			"key", d.Key, "storage_key", d.StorageKey, "err", err)
		return d.Default()
	}
	return v
}

// write stores v and then calls the live setter with the value as it will be
// read back, so the store and the UI agree on the normalized form.
func (b *Builder) write(d Descriptor, v any, setters Setters) (any, error) {
	raw, err := d.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, d.Key, err)
	}
	typed, err := d.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, d.Key, err)
	}
	if err := b.store.Set(d.StorageKey, raw); err != nil {
		return nil, &storeError{key: d.StorageKey, err: err}
	}
	if fn := setters[d.Key]; fn != nil {
		fn(typed)
	}
	return typed, nil
}

// storeError marks a failure of the underlying store, as opposed to a value
// rejected by its descriptor.
type storeError struct {
	key string
	err error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("snapshot: write %s: %v", e.key, e.err)
}

func (e *storeError) Unwrap() error { return e.err }

func isStoreError(err error) bool {
	_, ok := err.(*storeError)
	return ok
}
