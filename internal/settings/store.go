package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const settingsCols = `user_id, timezone, locale, unit_system, reminder_hour, share_anonymized_data, ai_persona, updated_at`

// Store persists user settings in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a settings Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Get returns the user's settings, or the package defaults when the user
// has never written any.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*Settings, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+settingsCols+` FROM user_settings WHERE user_id = $1`,
		userID,
	)

	st, err := scanSettings(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting settings for %s: %w", userID, err)
	}
	return st, nil
}

// Update applies a partial patch atomically: the row is created from the
// defaults on first write, and NULL patch fields keep their current value.
// The literals below mirror the user_settings column defaults.
func (s *Store) Update(ctx context.Context, userID uuid.UUID, p Patch) (*Settings, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO user_settings (user_id, timezone, locale, unit_system, reminder_hour, share_anonymized_data, ai_persona)
		 VALUES ($1,
		         COALESCE($2, 'UTC'),
		         COALESCE($3, 'en'),
		         COALESCE($4, 'metric'),
		         COALESCE($5, 9),
		         COALESCE($6, false),
		         COALESCE($7, ''))
		 ON CONFLICT (user_id) DO UPDATE SET
		     timezone              = COALESCE($2, user_settings.timezone),
		     locale                = COALESCE($3, user_settings.locale),
		     unit_system           = COALESCE($4, user_settings.unit_system),
		     reminder_hour         = COALESCE($5, user_settings.reminder_hour),
		     share_anonymized_data = COALESCE($6, user_settings.share_anonymized_data),
		     ai_persona            = COALESCE($7, user_settings.ai_persona),
		     updated_at            = now()
		 RETURNING `+settingsCols,
		userID, p.Timezone, p.Locale, p.UnitSystem, p.ReminderHour, p.ShareAnonymizedData, p.AIPersona,
	)

	st, err := scanSettings(row)
	if err != nil {
		return nil, fmt.Errorf("updating settings for %s: %w", userID, err)
	}

	s.logger.Debug("updated settings", "user_id", userID)
	return st, nil
}

// scanSettings reads a Settings row from a single-row query.
func scanSettings(row pgx.Row) (*Settings, error) {
	var st Settings
	if err := row.Scan(&st.UserID, &st.Timezone, &st.Locale, &st.UnitSystem,
		&st.ReminderHour, &st.ShareAnonymizedData, &st.AIPersona, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}
