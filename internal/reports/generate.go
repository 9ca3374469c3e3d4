package reports

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vitalog/vitalog/internal/health"
)

// Service generates reports from the health store and persists them.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	store  *Store
	health *health.Store
	logger *slog.Logger
}

// NewService creates a reports Service.
func NewService(store *Store, healthStore *health.Store, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if healthStore == nil {
		return nil, fmt.Errorf("health store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, health: healthStore, logger: logger}, nil
}

// Generate builds and persists a report over [from, to]. An empty period
// yields a valid report with empty sections.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, from, to time.Time) (*Report, error) {
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("%w: period start and end are required", ErrInvalidDateRange)
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: period start after end", ErrInvalidDateRange)
	}

	data := ReportData{
		Metrics:     []MetricSection{},
		Medications: []MedicationLine{},
		Symptoms:    []SymptomLine{},
	}

	for _, t := range health.MetricTypes() {
		section, err := s.metricSection(ctx, userID, t, from, to)
		if err != nil {
			return nil, err
		}
		if section != nil {
			data.Metrics = append(data.Metrics, *section)
		}
	}

	meds, err := s.health.ListMedications(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}
	for _, m := range meds {
		if !overlapsPeriod(m.StartDate, m.EndDate, from, to) {
			continue
		}
		data.Medications = append(data.Medications, MedicationLine{
			Name:      m.Name,
			Dosage:    m.Dosage,
			DoseUnit:  m.DoseUnit,
			Frequency: m.Frequency,
			StartDate: m.StartDate,
			EndDate:   m.EndDate,
			Active:    m.Active,
		})
	}

	symptoms, err := s.health.ListSymptoms(ctx, userID, health.SymptomFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("listing symptoms: %w", err)
	}
	for _, sym := range symptoms {
		data.Symptoms = append(data.Symptoms, SymptomLine{
			Name:       sym.Name,
			Severity:   sym.Severity,
			OnsetAt:    sym.OnsetAt,
			ResolvedAt: sym.ResolvedAt,
			Notes:      sym.Notes,
		})
	}

	title := fmt.Sprintf("Health report %s to %s",
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))

	report, err := s.store.insert(ctx, userID, title, from, to, data)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("report generated",
		"id", report.ID,
		"user_id", userID,
		"metric_sections", len(data.Metrics),
		"medications", len(data.Medications),
		"symptoms", len(data.Symptoms),
	)
	return report, nil
}

// Get returns one report owned by the user.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Report, error) {
	return s.store.Get(ctx, userID, id)
}

// List returns the user's reports, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Report, error) {
	return s.store.List(ctx, userID)
}

// Delete removes a report.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Delete(ctx, userID, id)
}

// Export renders a report in the requested format. The returned content
// type is what the HTTP layer should serve the bytes as.
func (s *Service) Export(ctx context.Context, userID, id uuid.UUID, format string) (body []byte, contentType string, err error) {
	report, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	switch format {
	case FormatJSON:
		body, err := marshalReport(report)
		if err != nil {
			return nil, "", err
		}
		return body, "application/json", nil
	case FormatMarkdown:
		return RenderMarkdown(report), "text/markdown; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

// metricSection builds one per-type section, nil when the period holds no
// readings of that type.
func (s *Service) metricSection(ctx context.Context, userID uuid.UUID, t health.MetricType, from, to time.Time) (*MetricSection, error) {
	summary, err := s.health.Summary(ctx, userID, t, from, to)
	if err != nil {
		return nil, fmt.Errorf("summarizing %s: %w", t, err)
	}
	if summary.Count == 0 {
		return nil, nil
	}

	metrics, err := s.health.ListMetrics(ctx, userID, health.MetricFilter{Type: t, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("listing %s readings: %w", t, err)
	}
	// The store lists newest first; report sections read chronologically.
	slices.Reverse(metrics)

	section := MetricSection{
		Type:     t,
		Count:    summary.Count,
		Min:      summary.Min,
		Max:      summary.Max,
		Avg:      summary.Avg,
		Readings: make([]Reading, 0, len(metrics)),
	}
	for _, m := range metrics {
		if section.Unit == "" {
			section.Unit = m.Unit
		}
		section.Readings = append(section.Readings, Reading{
			Value:      m.Value,
			RecordedAt: m.RecordedAt,
			Note:       m.Note,
		})
	}
	return &section, nil
}

// overlapsPeriod reports whether a medication course [start, end] (nil end
// means ongoing) intersects the report period.
func overlapsPeriod(start time.Time, end *time.Time, from, to time.Time) bool {
	if start.After(to) {
		return false
	}
	if end != nil && end.Before(from) {
		return false
	}
	return true
}
