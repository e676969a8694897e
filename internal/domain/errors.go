package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked signals temporary lockout after repeated failed attempts.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountBanned is a hard administrative block; it wins over every other state.
	ErrAccountBanned = errors.New("account banned")
	// ErrEmailNotConfirmed blocks login until the confirmation token is used.
	ErrEmailNotConfirmed = errors.New("email not confirmed")

	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	ErrRateLimited         = errors.New("rate limited")
	ErrTokenExpired        = errors.New("token expired")
	// ErrMalformedToken is returned when a token cannot be parsed at all,
	// as opposed to parsing fine and failing validation.
	ErrMalformedToken = errors.New("malformed token")
)
