package api

import (
	"log/slog"
	"net/http"

	"github.com/vitalog/vitalog/internal/settings"
)

// settingsHandler serves the per-user preference endpoints.
type settingsHandler struct {
	store  *settings.Store
	logger *slog.Logger
}

// get handles GET /api/v1/settings. Users without a stored row get the
// defaults.
func (h *settingsHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	prefs, err := h.store.Get(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, prefs)
}

// update handles PUT /api/v1/settings. Omitted fields keep their current
// value.
func (h *settingsHandler) update(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var patch settings.Patch
	if err := decodeJSON(w, r, &patch, maxBodyBytes, h.logger); err != nil {
		return
	}

	updated, err := h.store.Update(r.Context(), userID, patch)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}
