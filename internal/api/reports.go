package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vitalog/vitalog/internal/reports"
)

// reportsHandler serves the report snapshot endpoints.
type reportsHandler struct {
	service *reports.Service
	logger  *slog.Logger
}

// generate handles POST /api/v1/reports/generate. Each call produces a
// fresh snapshot of the requested period.
func (h *reportsHandler) generate(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req struct {
		From time.Time `json:"from"`
		To   time.Time `json:"to"`
	}
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	report, err := h.service.Generate(r.Context(), userID, req.From, req.To)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, report)
}

// list handles GET /api/v1/reports.
func (h *reportsHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	all, err := h.service.List(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"reports": all})
}

// get handles GET /api/v1/reports/{id}.
func (h *reportsHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	report, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// export handles GET /api/v1/reports/{id}/export?format=json|markdown and
// serves the report as a downloadable file.
func (h *reportsHandler) export(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = reports.FormatJSON
	}

	// The report is needed for the filename anyway, so fetch it before
	// rendering.
	report, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	body, contentType, err := h.service.Export(r.Context(), userID, id, format)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reports.Filename(report, format)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("writing export body", "error", err)
	}
}

// remove handles DELETE /api/v1/reports/{id}.
func (h *reportsHandler) remove(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
