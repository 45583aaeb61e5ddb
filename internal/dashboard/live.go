// Package dashboard wires the settings gate, the snapshot builder and the
// profile manager into the service the local API drives.
package dashboard

import (
	"reflect"
	"sync"

	"github.com/spf13/cast"

	"github.com/brianhealey/hadash/internal/events"
	"github.com/brianhealey/hadash/internal/snapshot"
)

// Live is the in-memory copy of the settings a connected UI renders. Its
// setter table is what Apply and Set call after a store write; every call
// is published on the bus.
type Live struct {
	mu     sync.RWMutex
	values map[string]any
	bus    *events.Bus
}

// NewLive seeds the live values from snap.
func NewLive(snap snapshot.Snapshot, bus *events.Bus) *Live {
	l := &Live{values: make(map[string]any), bus: bus}
	for _, sec := range []snapshot.Section{snapshot.SectionLayout, snapshot.SectionAppearance} {
		for k, v := range snap.Section(sec) {
			l.values[k] = v
		}
	}
	return l
}

// Setters returns one setter per descriptor in reg.
func (l *Live) Setters(reg *snapshot.Registry) snapshot.Setters {
	setters := make(snapshot.Setters)
	for _, d := range reg.Descriptors() {
		key := d.Key
		setters[key] = func(v any) { l.set(key, v) }
	}
	return setters
}

func (l *Live) set(key string, v any) {
	l.mu.Lock()
	l.values[key] = v
	l.mu.Unlock()
	if l.bus != nil {
		l.bus.Publish(events.Setting(key, v))
	}
}

// Refresh brings the live values in line with snap, publishing an event for
// each value that differs. It returns the number of changed settings.
func (l *Live) Refresh(snap snapshot.Snapshot) int {
	changed := 0
	for _, sec := range []snapshot.Section{snapshot.SectionLayout, snapshot.SectionAppearance} {
		for k, v := range snap.Section(sec) {
			if old, ok := l.Value(k); ok && reflect.DeepEqual(old, v) {
				continue
			}
			l.set(k, v)
			changed++
		}
	}
	return changed
}

// Value returns the live value of key.
func (l *Live) Value(key string) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.values[key]
	return v, ok
}

// Language returns the live UI language, "en" when unset.
func (l *Live) Language() string {
	v, _ := l.Value(snapshot.KeyLanguage)
	if s := cast.ToString(v); s != "" {
		return s
	}
	return "en"
}
