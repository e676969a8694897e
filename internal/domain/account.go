package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles are a flat string set compared against these constants.
// There is deliberately no policy engine behind them.
const (
	RoleClient = "Client"
	RoleAdmin  = "Admin"
)

// Account is the canonical authentication identity aggregate.
// It carries every auth-relevant field so login, lockout, recovery and 2FA
// flows stay service-owned and mutate a single row.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         string

	RefreshTokenHash   string
	RefreshTokenExpiry *time.Time

	EmailConfirmed         bool
	EmailConfirmationToken string

	PasswordResetTokenHash   string
	PasswordResetTokenExpiry *time.Time

	TwoFactorEnabled    bool
	TwoFactorCodeHash   string
	TwoFactorCodeExpiry *time.Time

	FailedLoginAttempts int
	LockoutUntil        *time.Time

	IsBanned bool

	LastLoginAt *time.Time
	LastLoginIP string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockedAt reports whether the account is under an active lockout window.
func (a Account) LockedAt(now time.Time) bool {
	return a.LockoutUntil != nil && a.LockoutUntil.After(now)
}

// LoginAttempt records authentication outcomes for audit and history queries.
type LoginAttempt struct {
	ID            int64
	AccountID     *uuid.UUID
	AttemptAt     time.Time
	IPAddress     string
	Status        string
	FailureReason string
	UserAgent     string
}

// ExternalLogin links a federated identity (provider + subject) to an account.
type ExternalLogin struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	Provider       string
	ProviderUserID string
	Email          string
	LinkedAt       time.Time
}
