package health

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// MetricType identifies what a health metric reading measures.
type MetricType string

// Known metric types. Blood pressure is tracked as two separate readings.
const (
	TypeWeight                 MetricType = "weight"
	TypeBloodPressureSystolic  MetricType = "blood_pressure_systolic"
	TypeBloodPressureDiastolic MetricType = "blood_pressure_diastolic"
	TypeHeartRate              MetricType = "heart_rate"
	TypeBloodGlucose           MetricType = "blood_glucose"
	TypeSleepHours             MetricType = "sleep_hours"
	TypeSteps                  MetricType = "steps"
	TypeTemperature            MetricType = "temperature"
	TypeOxygenSaturation       MetricType = "oxygen_saturation"
)

// metricTypes maps each known type to its validation rule. Zero is a legal
// reading for counters like steps, but not for physiological measurements.
var metricTypes = map[MetricType]struct{ allowZero bool }{
	TypeWeight:                 {},
	TypeBloodPressureSystolic:  {},
	TypeBloodPressureDiastolic: {},
	TypeHeartRate:              {},
	TypeBloodGlucose:           {},
	TypeSleepHours:             {allowZero: true},
	TypeSteps:                  {allowZero: true},
	TypeTemperature:            {},
	TypeOxygenSaturation:       {},
}

// Valid reports whether t is a known metric type.
func (t MetricType) Valid() bool {
	_, ok := metricTypes[t]
	return ok
}

// MetricTypes returns all known metric types, sorted for stable output.
func MetricTypes() []MetricType {
	types := make([]MetricType, 0, len(metricTypes))
	for t := range metricTypes {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Metric is a single timestamped health reading.
type Metric struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	Type       MetricType `json:"type"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit,omitempty"`
	RecordedAt time.Time  `json:"recordedAt"`
	Note       string     `json:"note,omitempty"`
}

// Medication is a tracked course of medicine. Active is derived, not
// stored: a medication is active until an end date is set.
type Medication struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"userId"`
	Name      string     `json:"name"`
	Dosage    float64    `json:"dosage"`
	DoseUnit  string     `json:"doseUnit,omitempty"`
	Frequency string     `json:"frequency,omitempty"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Active    bool       `json:"active"`
}

// Symptom is a logged symptom episode. A nil ResolvedAt means ongoing.
type Symptom struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	Name       string     `json:"name"`
	Severity   int        `json:"severity"`
	OnsetAt    time.Time  `json:"onsetAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Summary aggregates one metric type over a time range. First and Last are
// the oldest and newest readings in the range, nil when Count is zero.
type Summary struct {
	Type  MetricType `json:"type"`
	Count int        `json:"count"`
	Min   float64    `json:"min"`
	Max   float64    `json:"max"`
	Avg   float64    `json:"avg"`
	First *Metric    `json:"first,omitempty"`
	Last  *Metric    `json:"last,omitempty"`
}

// MetricFilter narrows ListMetrics. Zero fields are ignored.
type MetricFilter struct {
	Type  MetricType
	From  time.Time
	To    time.Time
	Limit int
}

// SymptomFilter narrows ListSymptoms. Zero fields are ignored; ActiveOnly
// keeps only unresolved symptoms.
type SymptomFilter struct {
	ActiveOnly bool
	From       time.Time
	To         time.Time
	Limit      int
}
