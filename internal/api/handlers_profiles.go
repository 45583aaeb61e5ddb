package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brianhealey/hadash/internal/dashboard"
	"github.com/brianhealey/hadash/internal/models"
)

func (h *Handlers) getProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Profiles()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// refreshProfiles reloads the list from the backend. A backend failure is
// reported in the list's error field, not as an HTTP error.
func (h *Handlers) refreshProfiles(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RefreshProfiles(r.Context()); errors.Is(err, dashboard.ErrProfilesDisabled) {
		writeError(w, err)
		return
	}
	h.getProfiles(w, r)
}

func (h *Handlers) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileCreate
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, models.ErrInvalidField("name", "name is required"))
		return
	}
	out, err := h.svc.SaveProfile(r.Context(), req.Name, req.DeviceLabel)
	if err == nil && out.Applied {
		writeJSON(w, http.StatusCreated, out)
		return
	}
	writeOutcome(w, out, err)
}

// overwriteProfile replaces a profile's data with the current settings. The
// body is optional; a name renames the profile at the same time.
func (h *Handlers) overwriteProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileRename
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	out, err := h.svc.OverwriteProfile(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.Name))
	writeOutcome(w, out, err)
}

func (h *Handlers) deleteProfile(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.DeleteProfile(r.Context(), chi.URLParam(r, "id"))
	writeOutcome(w, out, err)
}

func (h *Handlers) loadProfile(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.LoadProfile(r.Context(), chi.URLParam(r, "id"))
	writeOutcome(w, out, err)
}
