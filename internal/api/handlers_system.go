package api

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/brianhealey/hadash/internal/identity"
	"github.com/brianhealey/hadash/internal/maintenance"
	"github.com/brianhealey/hadash/internal/models"
)

// infoResponse describes this device.
type infoResponse struct {
	identity.Info
	ProfilesEnabled bool  `json:"profiles_enabled"`
	ProfilesOnline  *bool `json:"profiles_online,omitempty"`
}

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	resp := infoResponse{Info: h.opts.Info}
	_, err := h.svc.Profiles()
	resp.ProfilesEnabled = err == nil
	if h.opts.Online != nil {
		online := h.opts.Online()
		resp.ProfilesOnline = &online
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) getBackups(w http.ResponseWriter, r *http.Request) {
	if h.opts.DataDir == "" {
		writeError(w, models.ErrUnavailable("backups not configured"))
		return
	}
	names, err := maintenance.ListBackups(h.opts.DataDir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"backups": names})
}

func (h *Handlers) createBackup(w http.ResponseWriter, r *http.Request) {
	if h.opts.Backups == nil {
		writeError(w, models.ErrUnavailable("backups not configured"))
		return
	}
	path, err := h.opts.Backups.RunBackupNow()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": filepath.Base(path)})
}

// restoreBackup applies a stored backup through the gate.
func (h *Handlers) restoreBackup(w http.ResponseWriter, r *http.Request) {
	if h.opts.DataDir == "" {
		writeError(w, models.ErrUnavailable("backups not configured"))
		return
	}
	snap, err := maintenance.ReadBackup(h.opts.DataDir, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.ApplySnapshot(r.Context(), snap)
	writeOutcome(w, out, err)
}

