package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/auth-service/internal/domain"
)

// CreateAccountTxParams captures atomic account-creation inputs.
// It includes outbox/idempotency metadata so registration can be durable and replay-safe.
type CreateAccountTxParams struct {
	Email                  string
	PasswordHash           string
	Role                   string
	EmailConfirmed         bool
	EmailConfirmationToken string
	IdempotencyKey         string
	RegisteredAtUTC        time.Time
}

// AccountRepository defines persistence operations for accounts.
//
// The write methods are intentionally narrow single-purpose updates so that
// each auth flow mutates the row in one statement: a cancelled request can
// never leave half-updated lockout or token-rotation state behind.
type AccountRepository interface {
	CreateWithOutboxTx(ctx context.Context, params CreateAccountTxParams, outboxEvent OutboxEvent) (domain.Account, error)
	GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByRefreshTokenHash(ctx context.Context, tokenHash string) (domain.Account, error)
	GetByPasswordResetTokenHash(ctx context.Context, tokenHash string) (domain.Account, error)
	GetByEmailConfirmationToken(ctx context.Context, token string) (domain.Account, error)
	List(ctx context.Context, limit, offset int) ([]domain.Account, error)

	// RecordLoginFailure writes the counter and lockout timestamp in one update.
	RecordLoginFailure(ctx context.Context, accountID uuid.UUID, failedAttempts int, lockoutUntil *time.Time, at time.Time) error
	// RecordLoginSuccess resets the counter, clears lockout and stamps last login.
	RecordLoginSuccess(ctx context.Context, accountID uuid.UUID, ip string, at time.Time) error
	// ResetLoginCounters clears the counter and lockout without stamping a
	// login. Used when a verified password is stopped by a later gate.
	ResetLoginCounters(ctx context.Context, accountID uuid.UUID, at time.Time) error

	// SetRefreshToken overwrites the stored fingerprint unconditionally.
	// Issuing a new session invalidates the previous one by overwrite.
	SetRefreshToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiry time.Time, at time.Time) error
	// RotateRefreshToken replaces the fingerprint only while oldTokenHash is
	// still the stored value. Returns domain.ErrNotFound when another rotation
	// won the race; exactly one of two concurrent rotations succeeds.
	RotateRefreshToken(ctx context.Context, accountID uuid.UUID, oldTokenHash, newTokenHash string, expiry time.Time, at time.Time) error
	// ClearRefreshToken revokes future refresh. Missing rows are not an error
	// so logout stays idempotent.
	ClearRefreshToken(ctx context.Context, accountID uuid.UUID, at time.Time) error

	SetTwoFactorChallenge(ctx context.Context, accountID uuid.UUID, codeHash string, expiry time.Time, at time.Time) error
	ClearTwoFactorChallenge(ctx context.Context, accountID uuid.UUID, at time.Time) error
	SetTwoFactorEnabled(ctx context.Context, accountID uuid.UUID, enabled bool, at time.Time) error

	SetPasswordResetToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiry time.Time, at time.Time) error
	// UpdatePassword stores the new hash and clears the reset-token fields in
	// the same statement, consuming the single-use token.
	UpdatePassword(ctx context.Context, accountID uuid.UUID, passwordHash string, at time.Time) error
	// ConfirmEmail flips the flag and clears the single-use confirmation token.
	ConfirmEmail(ctx context.Context, accountID uuid.UUID, at time.Time) error

	SetBanned(ctx context.Context, accountID uuid.UUID, banned bool, at time.Time) error
	SetRole(ctx context.Context, accountID uuid.UUID, role string, at time.Time) error
	Delete(ctx context.Context, accountID uuid.UUID) error
}

// LoginAttemptRepository stores login outcomes used by the history endpoint
// and by fraud/audit consumers downstream.
type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.LoginAttempt) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int, since *time.Time, status string) ([]domain.LoginAttempt, error)
}

// ExternalLoginRepository persists federated identity links.
type ExternalLoginRepository interface {
	FindAccountID(ctx context.Context, provider, providerUserID string) (uuid.UUID, error)
	Upsert(ctx context.Context, accountID uuid.UUID, provider, providerUserID, email string, at time.Time) error
}

// Idempotency record lifecycle. A key is reserved as pending before the
// operation runs and completed once the response is stored.
const (
	IdempotencyStatusPending   = "PENDING"
	IdempotencyStatusCompleted = "COMPLETED"
)

// IdempotencyRecord tracks a previously accepted mutating request.
// Storing response metadata lets handlers return stable replay responses.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdempotencyRepository enforces idempotent mutation semantics.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}
