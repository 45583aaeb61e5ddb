// Package profileserver is the per-user profile collection the dashboard
// saves snapshots to. Every profile belongs to one Home Assistant user; the
// caller names that user in the X-HA-User-Id header and may only see and
// change its own profiles.
package profileserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brianhealey/hadash/internal/auth"
	"github.com/brianhealey/hadash/internal/models"
	"github.com/brianhealey/hadash/internal/profiles"
	"github.com/brianhealey/hadash/internal/snapshot"
)

const (
	maxBodyBytes = 1 << 20
	maxNameLen   = 100
)

// Options configures the router. Auth may be nil for an open backend; a
// non-positive RatePerSec disables rate limiting.
type Options struct {
	Store      *Store
	Auth       *auth.Service
	RatePerSec float64
	Burst      int
}

type handlers struct {
	store   *Store
	limiter *limiter
}

// NewRouter creates and returns the backend's HTTP router.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.CleanPath)
	if opts.Auth != nil {
		r.Use(opts.Auth.Middleware)
	}

	h := &handlers{store: opts.Store, limiter: newLimiter(opts.RatePerSec, opts.Burst)}

	r.Route("/api/profiles", func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// rateLimit spends one token of the calling user, or of the client address
// when no user is named.
func (h *handlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(profiles.UserHeader)
		if key == "" {
			key = r.URL.Query().Get("ha_user_id")
		}
		if key == "" {
			key = "addr:" + r.RemoteAddr
		}
		if !h.limiter.allow(key) {
			slog.Warn("profileserver: rate limited", "key", key)
			writeError(w, models.ErrTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("ha_user_id")
	if userID == "" {
		writeError(w, models.ErrInvalidField("ha_user_id", "ha_user_id query parameter is required"))
		return
	}
	if hdr := r.Header.Get(profiles.UserHeader); hdr != "" && hdr != userID {
		writeError(w, models.ErrForbidden("user mismatch"))
		return
	}
	list, err := h.store.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.owned(r, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := decodeInput(w, r, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.store.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("profileserver: created", "id", p.ID, "user", userID)
	writeJSON(w, http.StatusCreated, p)
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := decodeInput(w, r, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.owned(r, userID); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, storeError(err))
		return
	}
	slog.Info("profileserver: updated", "id", p.ID, "user", userID)
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.owned(r, userID); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, storeError(err))
		return
	}
	slog.Info("profileserver: deleted", "id", id, "user", userID)
	w.WriteHeader(http.StatusNoContent)
}

// owned loads the profile named in the path and checks it belongs to userID.
func (h *handlers) owned(r *http.Request, userID string) (*profiles.Profile, error) {
	p, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, storeError(err)
	}
	if p.UserID != userID {
		return nil, models.ErrForbidden("profile belongs to another user")
	}
	return p, nil
}

func requireUser(r *http.Request) (string, error) {
	userID := r.Header.Get(profiles.UserHeader)
	if userID == "" {
		return "", models.ErrBadRequest(profiles.UserHeader + " header is required")
	}
	return userID, nil
}

// inputBody keeps data raw so it can be checked strictly.
type inputBody struct {
	UserID      string          `json:"ha_user_id"`
	Name        string          `json:"name"`
	DeviceLabel string          `json:"device_label"`
	Data        json.RawMessage `json:"data"`
}

func decodeInput(w http.ResponseWriter, r *http.Request, userID string) (profiles.Input, error) {
	var body inputBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		return profiles.Input{}, models.ErrBadRequest("invalid JSON: " + err.Error())
	}
	if body.UserID != "" && body.UserID != userID {
		return profiles.Input{}, models.ErrForbidden("user mismatch")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" || len(name) > maxNameLen {
		return profiles.Input{}, models.ErrInvalidField("name", "name must be 1 to 100 characters")
	}
	snap, err := snapshot.Decode(body.Data)
	if err != nil {
		return profiles.Input{}, models.ErrInvalidField("data", snapshot.InvalidSnapshotMessage)
	}
	return profiles.Input{
		UserID:      userID,
		Name:        name,
		DeviceLabel: strings.TrimSpace(body.DeviceLabel),
		Data:        snap,
	}, nil
}

func storeError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return models.ErrNotFound("profile not found")
	}
	return err
}
