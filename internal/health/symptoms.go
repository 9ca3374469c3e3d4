package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// validateSymptom checks the fields shared by Log and Update.
func validateSymptom(sym *Symptom) error {
	if strings.TrimSpace(sym.Name) == "" {
		return ErrInvalidName
	}
	if sym.Severity < 1 || sym.Severity > 10 {
		return fmt.Errorf("%w: %d", ErrInvalidSeverity, sym.Severity)
	}
	if sym.ResolvedAt != nil && !sym.OnsetAt.IsZero() && sym.ResolvedAt.Before(sym.OnsetAt) {
		return ErrInvalidDateRange
	}
	return nil
}

// LogSymptom records a symptom episode. A zero OnsetAt defaults to now.
func (s *Store) LogSymptom(ctx context.Context, userID uuid.UUID, sym *Symptom) (*Symptom, error) {
	if err := validateSymptom(sym); err != nil {
		return nil, err
	}
	onsetAt := sym.OnsetAt
	if onsetAt.IsZero() {
		onsetAt = time.Now()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO symptoms (user_id, name, severity, onset_at, resolved_at, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+symptomCols,
		userID, strings.TrimSpace(sym.Name), sym.Severity, onsetAt, sym.ResolvedAt, sym.Notes,
	)

	created, err := scanSymptom(row)
	if err != nil {
		return nil, fmt.Errorf("logging symptom: %w", err)
	}

	s.logger.Debug("logged symptom", "id", created.ID, "name", created.Name, "severity", created.Severity)
	return created, nil
}

// GetSymptom retrieves one symptom owned by the user.
func (s *Store) GetSymptom(ctx context.Context, userID, id uuid.UUID) (*Symptom, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+symptomCols+` FROM symptoms
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	sym, err := scanSymptom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting symptom %s: %w", id, err)
	}
	return sym, nil
}

// ListSymptoms returns the user's symptoms, newest onset first, narrowed by
// the filter.
func (s *Store) ListSymptoms(ctx context.Context, userID uuid.UUID, f SymptomFilter) ([]*Symptom, error) {
	if err := validateRange(f.From, f.To); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+symptomCols+` FROM symptoms
		 WHERE user_id = $1
		   AND (NOT $2::bool OR resolved_at IS NULL)
		   AND ($3::timestamptz IS NULL OR onset_at >= $3)
		   AND ($4::timestamptz IS NULL OR onset_at <= $4)
		 ORDER BY onset_at DESC, id DESC
		 LIMIT $5`,
		userID, f.ActiveOnly, nullableTime(f.From), nullableTime(f.To), clampLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing symptoms: %w", err)
	}
	defer rows.Close()

	return scanSymptoms(rows)
}

// UpdateSymptom replaces the mutable fields of a symptom.
func (s *Store) UpdateSymptom(ctx context.Context, userID, id uuid.UUID, sym *Symptom) (*Symptom, error) {
	if err := validateSymptom(sym); err != nil {
		return nil, err
	}
	onsetAt := sym.OnsetAt
	if onsetAt.IsZero() {
		onsetAt = time.Now()
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE symptoms
		 SET name = $3, severity = $4, onset_at = $5, resolved_at = $6, notes = $7,
		     updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+symptomCols,
		id, userID, strings.TrimSpace(sym.Name), sym.Severity, onsetAt, sym.ResolvedAt, sym.Notes,
	)

	updated, err := scanSymptom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating symptom %s: %w", id, err)
	}
	return updated, nil
}

// ResolveSymptom marks an episode as resolved. A zero timestamp defaults to
// now; resolution before onset is rejected.
func (s *Store) ResolveSymptom(ctx context.Context, userID, id uuid.UUID, at time.Time) (*Symptom, error) {
	current, err := s.GetSymptom(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now()
	}
	if at.Before(current.OnsetAt) {
		return nil, ErrInvalidDateRange
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE symptoms SET resolved_at = $3, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+symptomCols,
		id, userID, at,
	)

	resolved, err := scanSymptom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving symptom %s: %w", id, err)
	}

	s.logger.Debug("resolved symptom", "id", id)
	return resolved, nil
}

// DeleteSymptom removes a symptom owned by the user.
func (s *Store) DeleteSymptom(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM symptoms WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting symptom %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanSymptom reads a Symptom from a single-row query.
func scanSymptom(row pgx.Row) (*Symptom, error) {
	var sym Symptom
	if err := row.Scan(&sym.ID, &sym.UserID, &sym.Name, &sym.Severity,
		&sym.OnsetAt, &sym.ResolvedAt, &sym.Notes); err != nil {
		return nil, err
	}
	return &sym, nil
}

// scanSymptoms reads all rows from a symptom list query.
func scanSymptoms(rows pgx.Rows) ([]*Symptom, error) {
	var symptoms []*Symptom
	for rows.Next() {
		sym := &Symptom{}
		if err := rows.Scan(&sym.ID, &sym.UserID, &sym.Name, &sym.Severity,
			&sym.OnsetAt, &sym.ResolvedAt, &sym.Notes); err != nil {
			return nil, fmt.Errorf("scanning symptom: %w", err)
		}
		symptoms = append(symptoms, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating symptoms: %w", err)
	}
	return symptoms, nil
}
