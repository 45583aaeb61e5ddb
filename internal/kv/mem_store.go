package kv

import "sync"

// MemStore is an in-memory Store for tests that never writes to disk.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

// NewMemStoreFrom returns an in-memory store seeded with a copy of values.
func NewMemStoreFrom(values map[string]string) *MemStore {
	m := NewMemStore()
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Get returns the stored value for key.
func (m *MemStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key.
func (m *MemStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Remove deletes key.
func (m *MemStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// All returns a copy of every stored key and value.
func (m *MemStore) All() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Ensure MemStore implements kv.Store
var _ Store = (*MemStore)(nil)
