package api

import (
	"net/http"

	"github.com/brianhealey/hadash/internal/models"
)

func (h *Handlers) getAccess(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Access())
}

// configureAccess sets or changes the PIN.
func (h *Handlers) configureAccess(w http.ResponseWriter, r *http.Request) {
	var req models.PinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.ConfigureLock(r.Context(), req.Pin)
	writeOutcome(w, out, h.translatedPinError(err))
}

func (h *Handlers) disableAccess(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.DisableLock(r.Context())
	writeOutcome(w, out, err)
}

// submitPin answers the open prompt. A wrong PIN is not an HTTP error: the
// prompt stays open and the translated message comes back in the body.
func (h *Handlers) submitPin(w http.ResponseWriter, r *http.Request) {
	var req models.PinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	ok := h.svc.SubmitPin(req.Pin)
	res := models.PinResult{Accepted: ok}
	if !ok {
		res.Error = h.svc.Access().Error
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) cancelPin(w http.ResponseWriter, r *http.Request) {
	h.svc.CancelPin()
	writeJSON(w, http.StatusOK, h.svc.Access())
}

func (h *Handlers) lockSession(w http.ResponseWriter, r *http.Request) {
	h.svc.LockSession()
	writeJSON(w, http.StatusOK, h.svc.Access())
}
