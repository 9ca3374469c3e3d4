// Package reports generates periodic health summaries: per-metric
// aggregates, the medication list and the symptom log for a date range,
// persisted as immutable JSONB snapshots. A report never changes after
// generation; regenerating the same period produces a new report.
package reports

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vitalog/vitalog/internal/health"
)

// Export formats accepted by Export.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

var (
	// ErrNotFound is returned when a report does not exist or belongs to a
	// different user; the two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("report not found")

	// ErrInvalidDateRange is returned when the period's end precedes its start.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidFormat is returned for export formats outside {json, markdown}.
	ErrInvalidFormat = errors.New("invalid export format")
)

// Report is one generated snapshot.
type Report struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	Title       string     `json:"title"`
	PeriodStart time.Time  `json:"periodStart"`
	PeriodEnd   time.Time  `json:"periodEnd"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Data        ReportData `json:"data"`
}

// ReportData is the snapshot body, stored as JSONB. Slices are always
// non-nil so an empty period exports as empty lists, not null.
type ReportData struct {
	Metrics     []MetricSection  `json:"metrics"`
	Medications []MedicationLine `json:"medications"`
	Symptoms    []SymptomLine    `json:"symptoms"`
}

// MetricSection aggregates one metric type over the period. Only types with
// at least one reading in the period appear in a report.
type MetricSection struct {
	Type     health.MetricType `json:"type"`
	Unit     string            `json:"unit,omitempty"`
	Count    int               `json:"count"`
	Min      float64           `json:"min"`
	Max      float64           `json:"max"`
	Avg      float64           `json:"avg"`
	Readings []Reading         `json:"readings"`
}

// Reading is one metric value inside a section.
type Reading struct {
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recordedAt"`
	Note       string    `json:"note,omitempty"`
}

// MedicationLine is one medication whose course overlaps the period.
type MedicationLine struct {
	Name      string     `json:"name"`
	Dosage    float64    `json:"dosage"`
	DoseUnit  string     `json:"doseUnit,omitempty"`
	Frequency string     `json:"frequency,omitempty"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Active    bool       `json:"active"`
}

// SymptomLine is one symptom episode with onset inside the period.
type SymptomLine struct {
	Name       string     `json:"name"`
	Severity   int        `json:"severity"`
	OnsetAt    time.Time  `json:"onsetAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// ValidFormat reports whether f is an accepted export format.
func ValidFormat(f string) bool {
	return f == FormatJSON || f == FormatMarkdown
}
