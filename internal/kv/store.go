// Package kv isolates the dashboard from the concrete key-value storage backend.
//
// Every persisted dashboard setting is a string value under a string key. The
// rest of the system only sees the Store interface; tests use MemStore.
package kv

import "errors"

// ErrClosed is returned by writes after a store has been closed.
var ErrClosed = errors.New("kv: store closed")

// Store is a persistent string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// Flusher is implemented by stores that buffer writes.
type Flusher interface {
	Flush() error
}
