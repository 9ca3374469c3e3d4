package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// validateMetric checks the type and value of a reading.
func validateMetric(t MetricType, value float64) error {
	spec, ok := metricTypes[t]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMetricType, t)
	}
	if value < 0 || (value == 0 && !spec.allowZero) {
		return fmt.Errorf("%w: %g for %s", ErrInvalidValue, value, t)
	}
	return nil
}

// AddMetric records a reading for the user. A zero RecordedAt defaults to
// now.
func (s *Store) AddMetric(ctx context.Context, userID uuid.UUID, m *Metric) (*Metric, error) {
	if err := validateMetric(m.Type, m.Value); err != nil {
		return nil, err
	}
	recordedAt := m.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO health_metrics (user_id, metric_type, value, unit, recorded_at, note)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+metricCols,
		userID, m.Type, m.Value, m.Unit, recordedAt, m.Note,
	)

	created, err := scanMetric(row)
	if err != nil {
		return nil, fmt.Errorf("creating metric: %w", err)
	}

	s.logger.Debug("added metric", "id", created.ID, "type", created.Type)
	return created, nil
}

// GetMetric retrieves one reading owned by the user.
func (s *Store) GetMetric(ctx context.Context, userID, id uuid.UUID) (*Metric, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+metricCols+` FROM health_metrics
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	m, err := scanMetric(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting metric %s: %w", id, err)
	}
	return m, nil
}

// ListMetrics returns the user's readings, newest first, narrowed by the
// filter.
func (s *Store) ListMetrics(ctx context.Context, userID uuid.UUID, f MetricFilter) ([]*Metric, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetricType, f.Type)
	}
	if err := validateRange(f.From, f.To); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+metricCols+` FROM health_metrics
		 WHERE user_id = $1
		   AND ($2::text = '' OR metric_type = $2)
		   AND ($3::timestamptz IS NULL OR recorded_at >= $3)
		   AND ($4::timestamptz IS NULL OR recorded_at <= $4)
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT $5`,
		userID, string(f.Type), nullableTime(f.From), nullableTime(f.To), clampLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing metrics: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// UpdateMetric replaces the mutable fields of a reading.
func (s *Store) UpdateMetric(ctx context.Context, userID, id uuid.UUID, m *Metric) (*Metric, error) {
	if err := validateMetric(m.Type, m.Value); err != nil {
		return nil, err
	}
	recordedAt := m.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE health_metrics
		 SET metric_type = $3, value = $4, unit = $5, recorded_at = $6, note = $7,
		     updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+metricCols,
		id, userID, m.Type, m.Value, m.Unit, recordedAt, m.Note,
	)

	updated, err := scanMetric(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating metric %s: %w", id, err)
	}
	return updated, nil
}

// DeleteMetric removes a reading owned by the user.
func (s *Store) DeleteMetric(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM health_metrics WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting metric %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Summary aggregates one metric type over a time range: count, min, max,
// mean, plus the oldest and newest readings in the range.
func (s *Store) Summary(ctx context.Context, userID uuid.UUID, t MetricType, from, to time.Time) (*Summary, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetricType, t)
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	sum := &Summary{Type: t}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(MIN(value), 0), COALESCE(MAX(value), 0), COALESCE(AVG(value), 0)
		 FROM health_metrics
		 WHERE user_id = $1 AND metric_type = $2
		   AND ($3::timestamptz IS NULL OR recorded_at >= $3)
		   AND ($4::timestamptz IS NULL OR recorded_at <= $4)`,
		userID, t, nullableTime(from), nullableTime(to),
	).Scan(&sum.Count, &sum.Min, &sum.Max, &sum.Avg)
	if err != nil {
		return nil, fmt.Errorf("summarizing %s: %w", t, err)
	}
	if sum.Count == 0 {
		return sum, nil
	}

	first, err := s.boundaryReading(ctx, userID, t, from, to, "ASC")
	if err != nil {
		return nil, err
	}
	last, err := s.boundaryReading(ctx, userID, t, from, to, "DESC")
	if err != nil {
		return nil, err
	}
	sum.First, sum.Last = first, last
	return sum, nil
}

// boundaryReading returns the oldest (ASC) or newest (DESC) reading in the
// range. dir is caller-controlled, never user input.
func (s *Store) boundaryReading(ctx context.Context, userID uuid.UUID, t MetricType, from, to time.Time, dir string) (*Metric, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+metricCols+` FROM health_metrics
		 WHERE user_id = $1 AND metric_type = $2
		   AND ($3::timestamptz IS NULL OR recorded_at >= $3)
		   AND ($4::timestamptz IS NULL OR recorded_at <= $4)
		 ORDER BY recorded_at `+dir+`, id `+dir+`
		 LIMIT 1`,
		userID, t, nullableTime(from), nullableTime(to),
	)

	m, err := scanMetric(row)
	if err != nil {
		return nil, fmt.Errorf("reading %s boundary for %s: %w", dir, t, err)
	}
	return m, nil
}

// scanMetric reads a Metric from a single-row query.
func scanMetric(row pgx.Row) (*Metric, error) {
	var m Metric
	if err := row.Scan(&m.ID, &m.UserID, &m.Type, &m.Value, &m.Unit, &m.RecordedAt, &m.Note); err != nil {
		return nil, err
	}
	return &m, nil
}

// scanMetrics reads all rows from a metric list query.
func scanMetrics(rows pgx.Rows) ([]*Metric, error) {
	var metrics []*Metric
	for rows.Next() {
		m := &Metric{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.Type, &m.Value, &m.Unit, &m.RecordedAt, &m.Note); err != nil {
			return nil, fmt.Errorf("scanning metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating metrics: %w", err)
	}
	return metrics, nil
}
