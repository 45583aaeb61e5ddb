// Package api implements the local HTTP API a dashboard UI drives: settings,
// the settings lock, profiles and live change events.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brianhealey/hadash/internal/dashboard"
	"github.com/brianhealey/hadash/internal/events"
	"github.com/brianhealey/hadash/internal/gate"
	"github.com/brianhealey/hadash/internal/i18n"
	"github.com/brianhealey/hadash/internal/identity"
	"github.com/brianhealey/hadash/internal/maintenance"
	"github.com/brianhealey/hadash/internal/models"
	"github.com/brianhealey/hadash/internal/profiles"
	"github.com/brianhealey/hadash/internal/snapshot"
)

const maxBodyBytes = 1 << 20

// EventBus is the interface for subscribing to change events.
type EventBus interface {
	Subscribe(id string) <-chan events.Event
	Unsubscribe(id string)
}

// BackupRunner writes a snapshot backup on demand.
type BackupRunner interface {
	RunBackupNow() (string, error)
}

// Options carries the router's dependencies besides the service.
type Options struct {
	Info    identity.Info
	DataDir string       // backups live under DataDir/backups; "" disables them
	Backups BackupRunner // nil disables on-demand backups
	Online  func() bool  // profile backend reachability; nil reports unknown
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	svc    *dashboard.Service
	events EventBus
	opts   Options
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON AppError.
func writeError(w http.ResponseWriter, err error) {
	appErr := toAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(appErr)
}

// writeOutcome answers a gated operation: 200 when it ran, 202 when it is
// waiting for the PIN.
func writeOutcome(w http.ResponseWriter, out dashboard.Outcome, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if out.Prompt {
		status = http.StatusAccepted
	}
	writeJSON(w, status, out)
}

// decodeBody decodes the JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return models.ErrBadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// toAppError maps domain errors onto HTTP errors.
func toAppError(err error) *models.AppError {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var remote *profiles.APIError
	switch {
	case errors.Is(err, snapshot.ErrUnknownSetting):
		return models.ErrNotFound(err.Error())
	case errors.Is(err, snapshot.ErrInvalidValue):
		return models.ErrInvalidField("value", err.Error())
	case errors.Is(err, snapshot.ErrInvalidSnapshot):
		return models.ErrBadRequest(snapshot.InvalidSnapshotMessage)
	case errors.Is(err, gate.ErrInvalidPin):
		return models.ErrInvalidField("pin", err.Error())
	case errors.Is(err, dashboard.ErrProfilesDisabled):
		return models.ErrUnavailable(err.Error())
	case errors.Is(err, profiles.ErrUnknownProfile):
		return models.ErrNotFound(err.Error())
	case errors.Is(err, maintenance.ErrBackupNotFound):
		return models.ErrNotFound(err.Error())
	case errors.As(err, &remote):
		if remote.Status >= 400 && remote.Status < 500 {
			return &models.AppError{Code: "PROFILES_BACKEND", Message: remote.Message, Status: remote.Status}
		}
		return models.ErrBadGateway(remote.Message)
	}
	return models.ErrInternal(err.Error())
}

// translatedPinError replaces the PIN format message with its translation.
func (h *Handlers) translatedPinError(err error) error {
	if errors.Is(err, gate.ErrInvalidPin) {
		return models.ErrInvalidField("pin", h.svc.Translate(i18n.PinInvalidFormat))
	}
	return err
}
