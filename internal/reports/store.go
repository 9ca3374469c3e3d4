package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportCols = `id, user_id, title, period_start, period_end, generated_at, data`

// Store persists generated reports in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a reports Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// insert stores a freshly generated report and returns it with its
// database-assigned ID and timestamp.
func (s *Store) insert(ctx context.Context, userID uuid.UUID, title string, start, end time.Time, data ReportData) (*Report, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding report data: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO reports (user_id, title, period_start, period_end, data)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+reportCols,
		userID, title, start, end, payload,
	)
	report, err := scanReport(row)
	if err != nil {
		return nil, fmt.Errorf("inserting report: %w", err)
	}

	s.logger.Debug("report stored", "id", report.ID, "user_id", userID)
	return report, nil
}

// Get returns one report owned by the user.
func (s *Store) Get(ctx context.Context, userID, id uuid.UUID) (*Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reportCols+`
		 FROM reports
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return report, nil
}

// List returns the user's reports, newest first.
func (s *Store) List(ctx context.Context, userID uuid.UUID) ([]*Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportCols+`
		 FROM reports
		 WHERE user_id = $1
		 ORDER BY generated_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := []*Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// Delete removes a report.
func (s *Store) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM reports WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("report deleted", "id", id, "user_id", userID)
	return nil
}

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	var payload []byte
	if err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.PeriodStart, &r.PeriodEnd, &r.GeneratedAt, &payload); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &r.Data); err != nil {
		return nil, fmt.Errorf("decoding report data: %w", err)
	}
	return &r, nil
}
