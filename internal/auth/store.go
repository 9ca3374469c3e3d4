package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// userCols is the standard SELECT column list for scanUser.
const userCols = `id, email, display_name, password_hash, created_at, updated_at`

// refreshCols is the standard SELECT column list for refresh token rows.
const refreshCols = `id, user_id, token_hash, expires_at, revoked_at, created_at`

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RefreshToken is the stored fingerprint of an issued refresh token.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Store persists users and refresh tokens in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates an auth Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// CreateUser inserts a new account. Returns ErrEmailTaken when the email
// is already registered; ON CONFLICT keeps the check free of races.
func (s *Store) CreateUser(ctx context.Context, email, displayName, passwordHash string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, display_name, password_hash)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING `+userCols,
		email, displayName, passwordHash,
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID)
	return user, nil
}

// GetUserByEmail looks up an account by its (lowercased) email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1`,
		email,
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

// GetUser retrieves an account by ID.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getUser(ctx, s.pool, id)
}

func (*Store) getUser(ctx context.Context, q querier, id uuid.UUID) (*User, error) {
	row := q.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`,
		id,
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return user, nil
}

// UpdateDisplayName changes the account's display name.
func (s *Store) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET display_name = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userCols,
		id, displayName,
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating display name for %s: %w", id, err)
	}
	return user, nil
}

// InsertRefreshToken stores the hash of a newly issued refresh token.
func (s *Store) InsertRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return s.insertRefreshToken(ctx, s.pool, userID, tokenHash, expiresAt)
}

func (*Store) insertRefreshToken(ctx context.Context, q querier, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := q.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		 VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("inserting refresh token: %w", err)
	}
	return nil
}

// getRefreshTokenForUpdate loads a refresh token row by hash and locks it
// for the duration of the transaction, so concurrent rotations of the same
// token serialize instead of double-issuing.
func (*Store) getRefreshTokenForUpdate(ctx context.Context, q querier, tokenHash string) (*RefreshToken, error) {
	var rt RefreshToken
	err := q.QueryRow(ctx,
		`SELECT `+refreshCols+` FROM refresh_tokens
		 WHERE token_hash = $1
		 FOR UPDATE`,
		tokenHash,
	).Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.RevokedAt, &rt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("getting refresh token: %w", err)
	}
	return &rt, nil
}

func (*Store) revokeRefreshToken(ctx context.Context, q querier, id uuid.UUID) error {
	_, err := q.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
		 WHERE id = $1 AND revoked_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("revoking refresh token %s: %w", id, err)
	}
	return nil
}

// RevokeByHash revokes a refresh token by its hash. Unknown or already
// revoked tokens are a no-op, which makes logout idempotent.
func (s *Store) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
		 WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash,
	)
	if err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return nil
}

// Rotate atomically revokes the presented refresh token and stores the hash
// of its replacement. Expired, revoked and unknown tokens all return
// ErrInvalidRefreshToken.
func (s *Store) Rotate(ctx context.Context, tokenHash, newHash string, newExpiry time.Time) (*User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	rt, err := s.getRefreshTokenForUpdate(ctx, tx, tokenHash)
	if err != nil {
		return nil, err
	}
	if rt.RevokedAt != nil || time.Now().After(rt.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.revokeRefreshToken(ctx, tx, rt.ID); err != nil {
		return nil, err
	}
	if err := s.insertRefreshToken(ctx, tx, rt.UserID, newHash, newExpiry); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, tx, rt.UserID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing rotation: %w", err)
	}
	return user, nil
}

// DeleteExpiredTokens removes refresh tokens whose expiry has passed.
// Returns the number of rows deleted.
func (s *Store) DeleteExpiredTokens(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired refresh tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanUser reads a User from a single-row query.
func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
