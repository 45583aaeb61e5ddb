package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brianhealey/hadash/internal/models"
)

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

func (h *Handlers) getDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Defaults())
}

func (h *Handlers) getSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, ok := h.svc.Live().Value(key)
	if !ok {
		writeError(w, models.ErrNotFound("unknown setting "+key))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "value": v})
}

func (h *Handlers) setSetting(w http.ResponseWriter, r *http.Request) {
	var upd models.SettingUpdate
	if err := decodeBody(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}
	if len(upd.Value) == 0 {
		writeError(w, models.ErrInvalidField("value", "value is required"))
		return
	}
	var v interface{}
	if err := json.Unmarshal(upd.Value, &v); err != nil {
		writeError(w, models.ErrInvalidField("value", "invalid value: "+err.Error()))
		return
	}
	out, err := h.svc.SetValue(r.Context(), chi.URLParam(r, "key"), v)
	writeOutcome(w, out, err)
}

func (h *Handlers) resetSettings(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Reset(r.Context())
	writeOutcome(w, out, err)
}
