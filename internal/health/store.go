// Package health stores per-user health data: metric readings, medication
// courses and symptom episodes. Every operation is scoped to one user; a row
// owned by someone else behaves exactly like a missing row.
package health

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Standard SELECT column lists for the scan helpers.
const (
	metricCols     = `id, user_id, metric_type, value, unit, recorded_at, note`
	medicationCols = `id, user_id, name, dosage, dose_unit, frequency, start_date, end_date, notes`
	symptomCols    = `id, user_id, name, severity, onset_at, resolved_at, notes`
)

// List query bounds.
const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Store persists health data in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a health data Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// clampLimit applies the default and upper bound for list queries.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// nullableTime maps the zero time to NULL so optional range bounds can be
// folded into a single static query.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// validateRange rejects ranges whose end precedes their start. Zero bounds
// are open.
func validateRange(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return ErrInvalidDateRange
	}
	return nil
}
