// Package events provides a simple publish-subscribe event bus for SSE delivery.
package events

import (
	"sync"
	"time"
)

const subBufferSize = 16

// Kind tells subscribers what changed.
type Kind string

const (
	// KindSetting is a single live setting write.
	KindSetting Kind = "setting"
	// KindAccess is a change of the settings lock state.
	KindAccess Kind = "access"
	// KindProfiles is a change of the profile list.
	KindProfiles Kind = "profiles"
)

// Event is one change notification.
type Event struct {
	Kind  Kind      `json:"kind"`
	Key   string    `json:"key,omitempty"`
	Value any       `json:"value,omitempty"`
	Time  time.Time `json:"time"`
}

// Setting returns a KindSetting event for key.
func Setting(key string, value any) Event {
	return Event{Kind: KindSetting, Key: key, Value: value, Time: time.Now()}
}

// Bus is a non-blocking publish-subscribe event bus.
// Subscribers that are slow to consume events will have events dropped rather
// than blocking publishers.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan Event),
	}
}

// Subscribe creates a new subscription with the given ID.
// Call Unsubscribe when done to clean up.
func (b *Bus) Subscribe(id string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends an event to all subscribers.
// If a subscriber's channel is full, the event is dropped (non-blocking).
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Drop if subscriber is slow
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
