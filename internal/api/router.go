package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brianhealey/hadash/internal/dashboard"
)

// NewRouter creates and returns the main HTTP router.
func NewRouter(svc *dashboard.Service, bus EventBus, opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{svc: svc, events: bus, opts: opts}

	r.Get("/api/info", h.getInfo)

	// Settings
	r.Get("/api/settings", h.getSettings)
	r.Get("/api/settings/defaults", h.getDefaults)
	r.Get("/api/settings/{key}", h.getSetting)
	r.Patch("/api/settings/{key}", h.setSetting)
	r.Post("/api/settings/reset", h.resetSettings)

	// Settings lock
	r.Get("/api/access", h.getAccess)
	r.Put("/api/access", h.configureAccess)
	r.Delete("/api/access", h.disableAccess)
	r.Post("/api/access/pin", h.submitPin)
	r.Post("/api/access/cancel", h.cancelPin)
	r.Post("/api/access/lock", h.lockSession)

	// Profiles
	r.Get("/api/profiles", h.getProfiles)
	r.Post("/api/profiles", h.saveProfile)
	r.Post("/api/profiles/refresh", h.refreshProfiles)
	r.Put("/api/profiles/{id}", h.overwriteProfile)
	r.Delete("/api/profiles/{id}", h.deleteProfile)
	r.Post("/api/profiles/{id}/load", h.loadProfile)

	// Backups
	r.Get("/api/backups", h.getBackups)
	r.Post("/api/backups", h.createBackup)
	r.Post("/api/backups/{name}/restore", h.restoreBackup)

	// Live events
	r.Get("/api/subscribe", h.sseEvents)
	r.Get("/api/ws", h.wsEvents)

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
