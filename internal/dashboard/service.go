package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianhealey/hadash/internal/events"
	"github.com/brianhealey/hadash/internal/gate"
	"github.com/brianhealey/hadash/internal/i18n"
	"github.com/brianhealey/hadash/internal/profiles"
	"github.com/brianhealey/hadash/internal/snapshot"
)

// actionTimeout bounds a gated action, including one replayed after the PIN
// was entered.
const actionTimeout = 30 * time.Second

// ErrProfilesDisabled is returned by profile operations when no profile
// backend is configured.
var ErrProfilesDisabled = errors.New("dashboard: profile backend not configured")

// Outcome reports what happened to a gated operation. When Prompt is set the
// operation is waiting for the PIN and runs once it is accepted.
type Outcome struct {
	Applied bool              `json:"applied"`
	Prompt  bool              `json:"prompt,omitempty"`
	Message string            `json:"message,omitempty"`
	Value   any               `json:"value,omitempty"`
	Profile *profiles.Profile `json:"profile,omitempty"`
}

// Service is every configuration-mutating entry point of the dashboard,
// each routed through the gate.
type Service struct {
	gate      *gate.Gate
	builder   *snapshot.Builder
	manager   *profiles.Manager
	live      *Live
	bus       *events.Bus
	setters   snapshot.Setters
	device    string
	translate func(key string) string
}

// Options configures a Service. Manager may be nil when no profile backend
// is configured.
type Options struct {
	Gate        *gate.Gate
	Builder     *snapshot.Builder
	Manager     *profiles.Manager
	Live        *Live
	Bus         *events.Bus
	DeviceLabel string
}

// NewService returns a Service over opts.
func NewService(opts Options) *Service {
	live := opts.Live
	if live == nil {
		live = NewLive(opts.Builder.Collect(), opts.Bus)
	}
	return &Service{
		gate:      opts.Gate,
		builder:   opts.Builder,
		manager:   opts.Manager,
		live:      live,
		bus:       opts.Bus,
		setters:   live.Setters(opts.Builder.Registry()),
		device:    opts.DeviceLabel,
		translate: i18n.Translator(live.Language),
	}
}

// Translate renders a message key in the live UI language.
func (s *Service) Translate(key string) string { return s.translate(key) }

// Snapshot returns the currently stored configuration.
func (s *Service) Snapshot() snapshot.Snapshot { return s.builder.Collect() }

// Defaults returns the default configuration.
func (s *Service) Defaults() snapshot.Snapshot { return s.builder.Defaults() }

// Live returns the live settings view.
func (s *Service) Live() *Live { return s.live }

// SetValue writes one setting through the gate. Unknown keys and values the
// descriptor rejects fail immediately, without prompting.
func (s *Service) SetValue(ctx context.Context, key string, v any) (Outcome, error) {
	d, ok := s.builder.Registry().Lookup(key)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", snapshot.ErrUnknownSetting, key)
	}
	if _, err := d.Serialize(v); err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %v", snapshot.ErrInvalidValue, key, err)
	}

	var stored any
	out, err := s.gated(ctx, "set "+key, func(context.Context) error {
		var err error
		stored, err = s.builder.Set(key, v, s.setters)
		return err
	})
	if out.Applied {
		out.Value = stored
	}
	return out, err
}

// Reset returns every setting to its default.
func (s *Service) Reset(ctx context.Context) (Outcome, error) {
	return s.gated(ctx, "reset", func(context.Context) error {
		return s.builder.Reset(s.setters)
	})
}

// ApplySnapshot applies snap, for example a restored backup. An invalid
// snapshot is rejected before the gate is consulted.
func (s *Service) ApplySnapshot(ctx context.Context, snap snapshot.Snapshot) (Outcome, error) {
	if !s.builder.IsValid(snap) {
		return Outcome{}, snapshot.ErrInvalidSnapshot
	}
	return s.gated(ctx, "apply snapshot", func(context.Context) error {
		return s.builder.Apply(snap, s.setters)
	})
}

// StoreReloaded resyncs the live settings and the gate after the settings
// store was edited by another process.
func (s *Service) StoreReloaded() {
	n := s.live.Refresh(s.builder.Collect())
	if s.gate.Reload() {
		s.publishAccess()
	}
	slog.Info("dashboard: settings reloaded from store", "changed", n)
}

// Access returns the gate state.
func (s *Service) Access() gate.Status { return s.gate.Status() }

// SubmitPin forwards pin to the gate. A pending action runs before it returns.
func (s *Service) SubmitPin(pin string) bool {
	ok := s.gate.SubmitPin(pin)
	s.publishAccess()
	return ok
}

// CancelPin closes the prompt and drops the pending action.
func (s *Service) CancelPin() {
	s.gate.Cancel()
	s.publishAccess()
}

// LockSession ends the session unlock.
func (s *Service) LockSession() {
	s.gate.Lock()
	s.publishAccess()
}

// ConfigureLock sets a new PIN. Changing an existing PIN requires the old one.
func (s *Service) ConfigureLock(ctx context.Context, pin string) (Outcome, error) {
	if !gate.ValidPin(pin) {
		return Outcome{}, gate.ErrInvalidPin
	}
	return s.gated(ctx, "configure lock", func(context.Context) error {
		return s.gate.Configure(pin)
	})
}

// DisableLock turns the PIN off.
func (s *Service) DisableLock(ctx context.Context) (Outcome, error) {
	return s.gated(ctx, "disable lock", func(context.Context) error {
		return s.gate.Disable()
	})
}

// ProfileList is the manager's view for display.
type ProfileList struct {
	Profiles []*profiles.Profile `json:"profiles"`
	Loading  bool                `json:"loading"`
	Error    string              `json:"error,omitempty"`
}

// Profiles returns the held profile list.
func (s *Service) Profiles() (ProfileList, error) {
	if s.manager == nil {
		return ProfileList{}, ErrProfilesDisabled
	}
	return ProfileList{
		Profiles: s.manager.Profiles(),
		Loading:  s.manager.Loading(),
		Error:    s.manager.Err(),
	}, nil
}

// RefreshProfiles reloads the profile list from the backend. Not gated: it
// changes nothing locally except the held list.
func (s *Service) RefreshProfiles(ctx context.Context) error {
	if s.manager == nil {
		return ErrProfilesDisabled
	}
	err := s.manager.Initialize(ctx)
	s.publishProfiles()
	return err
}

// SaveProfile stores the current configuration as a new profile. An empty
// deviceLabel falls back to the configured device label.
func (s *Service) SaveProfile(ctx context.Context, name, deviceLabel string) (Outcome, error) {
	if s.manager == nil {
		return Outcome{}, ErrProfilesDisabled
	}
	if deviceLabel == "" {
		deviceLabel = s.device
	}
	var saved *profiles.Profile
	out, err := s.gated(ctx, "save profile", func(ctx context.Context) error {
		p, err := s.manager.SaveProfile(ctx, name, deviceLabel)
		saved = p
		s.publishProfiles()
		return err
	})
	if out.Applied {
		out.Profile = saved
	}
	return out, err
}

// OverwriteProfile replaces profile id with the current configuration.
func (s *Service) OverwriteProfile(ctx context.Context, id, name string) (Outcome, error) {
	if s.manager == nil {
		return Outcome{}, ErrProfilesDisabled
	}
	var saved *profiles.Profile
	out, err := s.gated(ctx, "overwrite profile", func(ctx context.Context) error {
		p, err := s.manager.OverwriteProfile(ctx, id, name)
		saved = p
		s.publishProfiles()
		return err
	})
	if out.Applied {
		out.Profile = saved
	}
	return out, err
}

// DeleteProfile removes profile id.
func (s *Service) DeleteProfile(ctx context.Context, id string) (Outcome, error) {
	if s.manager == nil {
		return Outcome{}, ErrProfilesDisabled
	}
	return s.gated(ctx, "delete profile", func(ctx context.Context) error {
		err := s.manager.DeleteProfile(ctx, id)
		s.publishProfiles()
		return err
	})
}

// LoadProfile applies profile id to the store and the live settings.
func (s *Service) LoadProfile(ctx context.Context, id string) (Outcome, error) {
	if s.manager == nil {
		return Outcome{}, ErrProfilesDisabled
	}
	return s.gated(ctx, "load profile", func(ctx context.Context) error {
		return s.manager.LoadProfile(ctx, id, s.setters)
	})
}

// gated runs fn through the gate. When the gate is open fn runs now and its
// error is returned. Otherwise fn waits for the PIN and runs with a context
// detached from the request; its error is then only logged.
func (s *Service) gated(ctx context.Context, op string, fn func(ctx context.Context) error) (Outcome, error) {
	detached := context.WithoutCancel(ctx)
	done := make(chan error, 1)
	ran := s.gate.RequestAccess(func() {
		ctx, cancel := context.WithTimeout(detached, actionTimeout)
		defer cancel()
		err := fn(ctx)
		if err != nil {
			slog.Warn("dashboard: action failed", "op", op, "err", err)
		} else {
			slog.Debug("dashboard: action done", "op", op)
		}
		done <- err
	})
	if !ran {
		slog.Info("dashboard: action waiting for PIN", "op", op)
		s.publishAccess()
		return Outcome{Prompt: true, Message: s.translate(i18n.AccessRequired)}, nil
	}
	err := <-done
	return Outcome{Applied: err == nil}, err
}

func (s *Service) publishAccess() {
	if s.bus != nil {
		s.bus.Publish(events.Event{Kind: events.KindAccess, Value: s.gate.Status()})
	}
}

func (s *Service) publishProfiles() {
	if s.bus != nil {
		s.bus.Publish(events.Event{Kind: events.KindProfiles})
	}
}
