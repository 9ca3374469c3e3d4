package health

import "errors"

var (
	// ErrNotFound is returned when a row does not exist or belongs to a
	// different user; the two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidMetricType is returned for metric types outside the known set.
	ErrInvalidMetricType = errors.New("invalid metric type")

	// ErrInvalidValue is returned when a reading or dosage is out of range.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidSeverity is returned when a symptom severity is outside 1..10.
	ErrInvalidSeverity = errors.New("severity must be between 1 and 10")

	// ErrInvalidDateRange is returned when a range's end precedes its start.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidName is returned when a medication or symptom name is blank.
	ErrInvalidName = errors.New("name is required")
)
