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

// validateMedication checks the fields shared by Add and Update.
func validateMedication(m *Medication) error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrInvalidName
	}
	if m.Dosage <= 0 {
		return fmt.Errorf("%w: dosage %g", ErrInvalidValue, m.Dosage)
	}
	if m.EndDate != nil && !m.StartDate.IsZero() && m.EndDate.Before(m.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// AddMedication starts tracking a medication course. A zero StartDate
// defaults to today.
func (s *Store) AddMedication(ctx context.Context, userID uuid.UUID, m *Medication) (*Medication, error) {
	if err := validateMedication(m); err != nil {
		return nil, err
	}
	startDate := m.StartDate
	if startDate.IsZero() {
		startDate = time.Now()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO medications (user_id, name, dosage, dose_unit, frequency, start_date, end_date, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+medicationCols,
		userID, strings.TrimSpace(m.Name), m.Dosage, m.DoseUnit, m.Frequency, startDate, m.EndDate, m.Notes,
	)

	created, err := scanMedication(row)
	if err != nil {
		return nil, fmt.Errorf("creating medication: %w", err)
	}

	s.logger.Debug("added medication", "id", created.ID, "name", created.Name)
	return created, nil
}

// GetMedication retrieves one medication owned by the user.
func (s *Store) GetMedication(ctx context.Context, userID, id uuid.UUID) (*Medication, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+medicationCols+` FROM medications
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	m, err := scanMedication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting medication %s: %w", id, err)
	}
	return m, nil
}

// ListMedications returns the user's medications, most recently started
// first. With activeOnly, stopped courses are excluded.
func (s *Store) ListMedications(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+medicationCols+` FROM medications
		 WHERE user_id = $1 AND (NOT $2::bool OR end_date IS NULL)
		 ORDER BY start_date DESC, id DESC`,
		userID, activeOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}
	defer rows.Close()

	return scanMedications(rows)
}

// UpdateMedication replaces the mutable fields of a medication.
func (s *Store) UpdateMedication(ctx context.Context, userID, id uuid.UUID, m *Medication) (*Medication, error) {
	if err := validateMedication(m); err != nil {
		return nil, err
	}
	startDate := m.StartDate
	if startDate.IsZero() {
		startDate = time.Now()
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE medications
		 SET name = $3, dosage = $4, dose_unit = $5, frequency = $6,
		     start_date = $7, end_date = $8, notes = $9, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+medicationCols,
		id, userID, strings.TrimSpace(m.Name), m.Dosage, m.DoseUnit, m.Frequency, startDate, m.EndDate, m.Notes,
	)

	updated, err := scanMedication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating medication %s: %w", id, err)
	}
	return updated, nil
}

// StopMedication ends a course. A zero endDate defaults to today; an end
// date before the start date is rejected.
func (s *Store) StopMedication(ctx context.Context, userID, id uuid.UUID, endDate time.Time) (*Medication, error) {
	current, err := s.GetMedication(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if endDate.IsZero() {
		endDate = time.Now()
	}
	if endDate.Before(current.StartDate) {
		return nil, ErrInvalidDateRange
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE medications SET end_date = $3, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+medicationCols,
		id, userID, endDate,
	)

	stopped, err := scanMedication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stopping medication %s: %w", id, err)
	}

	s.logger.Debug("stopped medication", "id", id, "end_date", endDate.Format(time.DateOnly))
	return stopped, nil
}

// DeleteMedication removes a medication owned by the user.
func (s *Store) DeleteMedication(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM medications WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting medication %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanMedication reads a Medication from a single-row query and derives
// Active.
func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	if err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Dosage, &m.DoseUnit, &m.Frequency,
		&m.StartDate, &m.EndDate, &m.Notes); err != nil {
		return nil, err
	}
	m.Active = m.EndDate == nil
	return &m, nil
}

// scanMedications reads all rows from a medication list query.
func scanMedications(rows pgx.Rows) ([]*Medication, error) {
	var medications []*Medication
	for rows.Next() {
		m := &Medication{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Dosage, &m.DoseUnit, &m.Frequency,
			&m.StartDate, &m.EndDate, &m.Notes); err != nil {
			return nil, fmt.Errorf("scanning medication: %w", err)
		}
		m.Active = m.EndDate == nil
		medications = append(medications, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating medications: %w", err)
	}
	return medications, nil
}
