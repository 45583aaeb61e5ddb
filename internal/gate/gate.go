// Package gate implements the settings access gate: an optional PIN challenge
// in front of every configuration-mutating action.
//
// The PIN is a convenience deterrent against casual changes on a shared wall
// panel. It is not an access-control boundary: the stored hash is a simple
// checksum and there is no lockout after wrong attempts.
package gate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brianhealey/hadash/internal/i18n"
	"github.com/brianhealey/hadash/internal/kv"
)

// Store keys. They are not part of any snapshot, so profiles never carry the PIN.
const (
	keyEnabled = "settings_lock_enabled"
	keyPinHash = "settings_lock_pin_hash"
)

const (
	minPinLen = 4
	maxPinLen = 8
)

// ErrInvalidPin is returned by Configure for a PIN that is not 4-8 digits.
var ErrInvalidPin = errors.New("gate: PIN must be 4 to 8 digits")

// state is one of idle, awaitingPin or unlocked. Only awaitingPin carries an
// action, so there is never more than one pending action.
type state interface{ isState() }

// idle: gate enabled, no prompt shown, nothing pending.
type idle struct{}

// awaitingPin: prompt shown, exactly one action waiting for the PIN.
type awaitingPin struct{ action func() }

// unlocked: gate disabled, or the PIN was entered during this process.
type unlocked struct{}

func (idle) isState()        {}
func (awaitingPin) isState() {}
func (unlocked) isState()    {}

// Status is a point-in-time view of the gate for a UI.
type Status struct {
	Enabled  bool   `json:"enabled"`
	Unlocked bool   `json:"unlocked"`
	Prompt   bool   `json:"prompt"`
	Error    string `json:"error,omitempty"`
}

// Gate serializes access to mutating actions. The session unlock lives only
// in memory and is lost on restart.
type Gate struct {
	mu        sync.Mutex
	store     kv.Store
	translate func(key string) string

	enabled bool
	pinHash string
	current state
	errMsg  string
}

// New loads the persisted lock settings from store. translate renders
// user-visible messages; nil renders them in English.
func New(store kv.Store, translate func(key string) string) *Gate {
	if translate == nil {
		translate = func(key string) string { return i18n.Translate("en", key) }
	}
	g := &Gate{store: store, translate: translate}
	g.enabled, g.pinHash = g.load()
	if g.enabled {
		g.current = idle{}
	} else {
		g.current = unlocked{}
	}
	slog.Debug("gate: loaded", "enabled", g.enabled)
	return g
}

func (g *Gate) load() (enabled bool, hash string) {
	hash, _ = g.store.Get(keyPinHash)
	flag, _ := g.store.Get(keyEnabled)
	return flag == "true" && hash != "", hash
}

// Reload re-reads the lock settings after the store was changed outside the
// gate. A new or changed PIN ends the session unlock but keeps an open
// prompt; removing the PIN unlocks and drops any pending action. Returns
// whether anything changed.
func (g *Gate) Reload() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	enabled, hash := g.load()
	if enabled == g.enabled && hash == g.pinHash {
		return false
	}
	g.enabled = enabled
	g.pinHash = hash
	g.errMsg = ""
	switch _, prompting := g.current.(awaitingPin); {
	case !enabled:
		g.current = unlocked{}
	case !prompting:
		g.current = idle{}
	}
	slog.Info("gate: lock settings changed externally", "enabled", enabled)
	return true
}

// RequestAccess runs action now and returns true when the gate is unlocked.
// Otherwise action becomes the single pending action, replacing any earlier
// one without running it, the PIN prompt opens, and false is returned.
func (g *Gate) RequestAccess(action func()) bool {
	if action == nil {
		action = func() {}
	}

	g.mu.Lock()
	switch g.current.(type) {
	case unlocked:
		g.mu.Unlock()
		action()
		return true
	case awaitingPin:
		slog.Debug("gate: replacing pending action")
	}
	g.current = awaitingPin{action: action}
	g.mu.Unlock()
	return false
}

// SubmitPin checks pin while the prompt is open. On a match the prompt
// closes, the session unlocks and the pending action runs exactly once. On a
// mismatch a translated error is set and the pending action is kept for a
// retry. Returns whether the PIN was accepted.
func (g *Gate) SubmitPin(pin string) bool {
	g.mu.Lock()
	pending, ok := g.current.(awaitingPin)
	if !ok {
		g.mu.Unlock()
		return false
	}
	if HashPin(pin) != g.pinHash {
		g.errMsg = g.translate(i18n.PinIncorrect)
		g.mu.Unlock()
		slog.Info("gate: incorrect PIN")
		return false
	}
	g.errMsg = ""
	g.current = unlocked{}
	g.mu.Unlock()

	slog.Info("gate: session unlocked")
	// Run outside the lock: the action may call back into the gate.
	pending.action()
	return true
}

// Cancel closes the prompt and discards the pending action without running it.
func (g *Gate) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errMsg = ""
	if _, ok := g.current.(awaitingPin); ok {
		g.current = idle{}
	}
}

// Configure enables the gate with a new PIN and keeps the current session
// unlocked. Callers gate this call itself through RequestAccess.
func (g *Gate) Configure(pin string) error {
	if !ValidPin(pin) {
		return ErrInvalidPin
	}
	hash := HashPin(pin)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.Set(keyPinHash, hash); err != nil {
		return fmt.Errorf("gate: save PIN: %w", err)
	}
	if err := g.store.Set(keyEnabled, "true"); err != nil {
		return fmt.Errorf("gate: save lock flag: %w", err)
	}
	g.enabled = true
	g.pinHash = hash
	g.errMsg = ""
	g.current = unlocked{}
	slog.Info("gate: PIN lock enabled")
	return nil
}

// Disable turns the gate off and forgets the PIN.
func (g *Gate) Disable() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.Remove(keyEnabled); err != nil {
		return fmt.Errorf("gate: clear lock flag: %w", err)
	}
	if err := g.store.Remove(keyPinHash); err != nil {
		return fmt.Errorf("gate: clear PIN: %w", err)
	}
	g.enabled = false
	g.pinHash = ""
	g.errMsg = ""
	g.current = unlocked{}
	slog.Info("gate: PIN lock disabled")
	return nil
}

// Lock ends the session unlock, so the next request prompts again.
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.current.(unlocked); ok && g.enabled {
		g.current = idle{}
	}
}

// PromptOpen reports whether the PIN prompt is showing.
func (g *Gate) PromptOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.current.(awaitingPin)
	return ok
}

// Error returns the current PIN error message, if any.
func (g *Gate) Error() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errMsg
}

// Enabled reports whether a PIN is configured.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// SessionUnlocked reports whether the PIN was entered during this process.
func (g *Gate) SessionUnlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.current.(unlocked)
	return ok && g.enabled
}

// Status returns the gate state for display.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, open := g.current.(awaitingPin)
	_, unl := g.current.(unlocked)
	return Status{
		Enabled:  g.enabled,
		Unlocked: unl,
		Prompt:   open,
		Error:    g.errMsg,
	}
}

// HashPin is a 32-bit rolling multiply-add checksum over the PIN's
// characters, rendered as a prefixed hex string. Not a cryptographic hash.
func HashPin(pin string) string {
	var h uint32
	for _, r := range pin {
		h = h*31 + uint32(r)
	}
	return fmt.Sprintf("pin:%08x", h)
}

// ValidPin reports whether pin is 4 to 8 ASCII digits.
func ValidPin(pin string) bool {
	if len(pin) < minPinLen || len(pin) > maxPinLen {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
