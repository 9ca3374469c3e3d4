package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vitalog/vitalog/internal/health"
)

// healthHandler serves the metric, medication and symptom endpoints.
type healthHandler struct {
	store  *health.Store
	logger *slog.Logger
}

// pathID extracts and parses the {id} path segment. A malformed ID has
// already been answered with 400 when ok is false.
func pathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID", logger)
		return uuid.Nil, false
	}
	return id, true
}

// queryTime parses an optional RFC3339 (or date-only) query parameter.
func queryTime(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339 or YYYY-MM-DD", key)
	}
	return t, nil
}

// queryInt parses an optional integer query parameter, 0 when absent.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// metricRequest is the POST/PUT body for a reading.
type metricRequest struct {
	Type       health.MetricType `json:"type"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit"`
	RecordedAt time.Time         `json:"recordedAt"`
	Note       string            `json:"note"`
}

func (req metricRequest) metric() *health.Metric {
	return &health.Metric{
		Type:       req.Type,
		Value:      req.Value,
		Unit:       req.Unit,
		RecordedAt: req.RecordedAt,
		Note:       req.Note,
	}
}

// addMetric handles POST /api/v1/health/metrics.
func (h *healthHandler) addMetric(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req metricRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	created, err := h.store.AddMetric(r.Context(), userID, req.metric())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// listMetrics handles GET /api/v1/health/metrics with optional type, from,
// to and limit query parameters.
func (h *healthHandler) listMetrics(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	filter, ok := h.metricFilter(w, r)
	if !ok {
		return
	}

	metrics, err := h.store.ListMetrics(r.Context(), userID, filter)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"metrics": metrics})
}

// metricSummary handles GET /api/v1/health/metrics/summary?type=...&from=&to=.
func (h *healthHandler) metricSummary(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	metricType := health.MetricType(r.URL.Query().Get("type"))
	if metricType == "" {
		WriteError(w, http.StatusBadRequest, "missing_type", "type query parameter is required", h.logger)
		return
	}

	filter, ok := h.metricFilter(w, r)
	if !ok {
		return
	}

	summary, err := h.store.Summary(r.Context(), userID, metricType, filter.From, filter.To)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// metricFilter parses the shared list/summary query parameters. A false
// return means the 400 is already written.
func (h *healthHandler) metricFilter(w http.ResponseWriter, r *http.Request) (health.MetricFilter, bool) {
	from, err := queryTime(r, "from")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_param", err.Error(), h.logger)
		return health.MetricFilter{}, false
	}
	to, err := queryTime(r, "to")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_param", err.Error(), h.logger)
		return health.MetricFilter{}, false
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_param", err.Error(), h.logger)
		return health.MetricFilter{}, false
	}
	return health.MetricFilter{
		Type:  health.MetricType(r.URL.Query().Get("type")),
		From:  from,
		To:    to,
		Limit: limit,
	}, true
}

// getMetric handles GET /api/v1/health/metrics/{id}.
func (h *healthHandler) getMetric(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	m, err := h.store.GetMetric(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

// updateMetric handles PUT /api/v1/health/metrics/{id}.
func (h *healthHandler) updateMetric(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req metricRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	updated, err := h.store.UpdateMetric(r.Context(), userID, id, req.metric())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// deleteMetric handles DELETE /api/v1/health/metrics/{id}.
func (h *healthHandler) deleteMetric(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.store.DeleteMetric(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// medicationRequest is the POST/PUT body for a medication course.
type medicationRequest struct {
	Name      string     `json:"name"`
	Dosage    float64    `json:"dosage"`
	DoseUnit  string     `json:"doseUnit"`
	Frequency string     `json:"frequency"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
	Notes     string     `json:"notes"`
}

func (req medicationRequest) medication() *health.Medication {
	return &health.Medication{
		Name:      req.Name,
		Dosage:    req.Dosage,
		DoseUnit:  req.DoseUnit,
		Frequency: req.Frequency,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Notes:     req.Notes,
	}
}

// addMedication handles POST /api/v1/health/medications.
func (h *healthHandler) addMedication(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req medicationRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	created, err := h.store.AddMedication(r.Context(), userID, req.medication())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// listMedications handles GET /api/v1/health/medications?active=true.
func (h *healthHandler) listMedications(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	activeOnly := r.URL.Query().Get("active") == "true"

	meds, err := h.store.ListMedications(r.Context(), userID, activeOnly)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"medications": meds})
}

// getMedication handles GET /api/v1/health/medications/{id}.
func (h *healthHandler) getMedication(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	m, err := h.store.GetMedication(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

// updateMedication handles PUT /api/v1/health/medications/{id}.
func (h *healthHandler) updateMedication(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req medicationRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	updated, err := h.store.UpdateMedication(r.Context(), userID, id, req.medication())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// stopMedication handles POST /api/v1/health/medications/{id}/stop. An
// absent endDate stops the course today.
func (h *healthHandler) stopMedication(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req struct {
		EndDate time.Time `json:"endDate"`
	}
	if err := decodeOptionalJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	stopped, err := h.store.StopMedication(r.Context(), userID, id, req.EndDate)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, stopped)
}

// deleteMedication handles DELETE /api/v1/health/medications/{id}.
func (h *healthHandler) deleteMedication(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.store.DeleteMedication(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// symptomRequest is the POST/PUT body for a symptom episode.
type symptomRequest struct {
	Name       string     `json:"name"`
	Severity   int        `json:"severity"`
	OnsetAt    time.Time  `json:"onsetAt"`
	ResolvedAt *time.Time `json:"resolvedAt"`
	Notes      string     `json:"notes"`
}

func (req symptomRequest) symptom() *health.Symptom {
	return &health.Symptom{
		Name:       req.Name,
		Severity:   req.Severity,
		OnsetAt:    req.OnsetAt,
		ResolvedAt: req.ResolvedAt,
		Notes:      req.Notes,
	}
}

// logSymptom handles POST /api/v1/health/symptoms.
func (h *healthHandler) logSymptom(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req symptomRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	created, err := h.store.LogSymptom(r.Context(), userID, req.symptom())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// listSymptoms handles GET /api/v1/health/symptoms with optional active,
// from, to and limit query parameters.
func (h *healthHandler) listSymptoms(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	from, err := queryTime(r, "from")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_param", err.Error(), h.logger)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_param", err.Error(), h.logger)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_param", err.Error(), h.logger)
		return
	}

	symptoms, err := h.store.ListSymptoms(r.Context(), userID, health.SymptomFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		From:       from,
		To:         to,
		Limit:      limit,
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"symptoms": symptoms})
}

// getSymptom handles GET /api/v1/health/symptoms/{id}.
func (h *healthHandler) getSymptom(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	sym, err := h.store.GetSymptom(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, sym)
}

// updateSymptom handles PUT /api/v1/health/symptoms/{id}.
func (h *healthHandler) updateSymptom(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req symptomRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	updated, err := h.store.UpdateSymptom(r.Context(), userID, id, req.symptom())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// deleteSymptom handles DELETE /api/v1/health/symptoms/{id}.
func (h *healthHandler) deleteSymptom(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.store.DeleteSymptom(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveSymptom handles POST /api/v1/health/symptoms/{id}/resolve. An
// absent resolvedAt resolves the episode now.
func (h *healthHandler) resolveSymptom(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req struct {
		ResolvedAt time.Time `json:"resolvedAt"`
	}
	if err := decodeOptionalJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	resolved, err := h.store.ResolveSymptom(r.Context(), userID, id, req.ResolvedAt)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, resolved)
}
