// Package auth implements account registration, login and the JWT token
// lifecycle.
//
// Access tokens are short-lived HS256 JWTs verified statelessly. Refresh
// tokens are opaque random secrets stored only as SHA-256 hashes and rotated
// on every use: presenting a refresh token revokes it and issues a new pair.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// tokenIssuer is the iss claim on issued access tokens.
	tokenIssuer = "vitalog"

	// MinPasswordLen is the minimum accepted password length.
	MinPasswordLen = 8

	// maxPasswordLen is bcrypt's input limit.
	maxPasswordLen = 72

	// maxDisplayNameLen bounds the display name.
	maxDisplayNameLen = 100

	// DefaultAccessTTL is the access token lifetime when none is configured.
	DefaultAccessTTL = 15 * time.Minute

	// DefaultRefreshTTL is the refresh token lifetime when none is configured.
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// dummyPasswordHash is compared against when the email is unknown, so both
// login failure paths cost one bcrypt verification.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// TokenPair is what clients receive on register, login and refresh.
// ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Config carries the token parameters for a Service.
type Config struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// Service implements the account and token operations on top of Store.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	store      *Store
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	logger     *slog.Logger
}

// NewService creates an auth Service. The JWT secret is required; zero TTLs
// and cost fall back to package defaults.
func NewService(store *Store, cfg Config, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &Service{
		store:      store,
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		bcryptCost: cost,
		logger:     logger,
	}, nil
}

// Register creates an account and signs the user in.
func (s *Service) Register(ctx context.Context, email, displayName, password string) (*User, *TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || len(displayName) > maxDisplayNameLen {
		return nil, nil, ErrInvalidDisplayName
	}
	if err := validatePassword(password); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, displayName, string(hash))
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, pair, nil
}

// Login verifies the credentials and issues a fresh token pair. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		// Equalize timing between unknown email and wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(password))
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. Expired, revoked and unknown tokens return
// ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	newSecret, err := newRefreshSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user, err := s.store.Rotate(ctx, hashToken(refreshToken), hashToken(newSecret), now.Add(s.refreshTTL))
	if err != nil {
		return nil, err
	}

	access, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: newSecret,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Logout revokes the refresh token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.store.RevokeByHash(ctx, hashToken(refreshToken))
}

// GetUser retrieves a user profile by ID.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateUser changes the user's display name.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, displayName string) (*User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || len(displayName) > maxDisplayNameLen {
		return nil, ErrInvalidDisplayName
	}
	return s.store.UpdateDisplayName(ctx, id, displayName)
}

// issueTokens signs an access token and persists a new refresh token hash.
func (s *Service) issueTokens(ctx context.Context, user *User) (*TokenPair, error) {
	now := time.Now()

	access, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	refresh, err := newRefreshSecret()
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertRefreshToken(ctx, user.ID, hashToken(refresh), now.Add(s.refreshTTL)); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// normalizeEmail trims, lowercases and shape-checks an email address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// validatePassword enforces the length bounds.
func validatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordLen {
		return ErrPasswordTooLong
	}
	return nil
}
