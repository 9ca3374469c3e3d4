package auth

import "errors"

// Sentinel errors for account and token operations.
// These are part of the package's public API and should be checked with errors.Is().
var (
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials indicates the email or password is wrong.
	// Callers must not reveal which one.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRefreshToken indicates the refresh token is unknown,
	// expired or revoked.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrInvalidAccessToken indicates the access token failed verification.
	ErrInvalidAccessToken = errors.New("invalid access token")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidEmail indicates the email does not look like an address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrPasswordTooShort indicates the password is below the minimum length.
	ErrPasswordTooShort = errors.New("password too short")

	// ErrPasswordTooLong indicates the password exceeds the bcrypt input limit.
	ErrPasswordTooLong = errors.New("password too long")

	// ErrInvalidDisplayName indicates the display name is empty or too long.
	ErrInvalidDisplayName = errors.New("invalid display name")
)
