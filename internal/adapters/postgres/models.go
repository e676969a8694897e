package postgres

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/auth-service/internal/domain"
)

type accountModel struct {
	AccountID    uuid.UUID `gorm:"column:account_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"column:email"`
	PasswordHash string    `gorm:"column:password_hash"`
	Role         string    `gorm:"column:role"`

	RefreshTokenHash   *string    `gorm:"column:refresh_token_hash"`
	RefreshTokenExpiry *time.Time `gorm:"column:refresh_token_expiry"`

	EmailConfirmed         bool    `gorm:"column:email_confirmed"`
	EmailConfirmationToken *string `gorm:"column:email_confirmation_token"`

	PasswordResetTokenHash   *string    `gorm:"column:password_reset_token_hash"`
	PasswordResetTokenExpiry *time.Time `gorm:"column:password_reset_token_expiry"`

	TwoFactorEnabled    bool       `gorm:"column:two_factor_enabled"`
	TwoFactorCodeHash   *string    `gorm:"column:two_factor_code_hash"`
	TwoFactorCodeExpiry *time.Time `gorm:"column:two_factor_code_expiry"`

	FailedLoginAttempts int        `gorm:"column:failed_login_attempts"`
	LockoutUntil        *time.Time `gorm:"column:lockout_until"`

	IsBanned bool `gorm:"column:is_banned"`

	LastLoginAt *time.Time `gorm:"column:last_login_at"`
	LastLoginIP *string    `gorm:"column:last_login_ip"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "accounts" }

type loginAttemptModel struct {
	ID            int64      `gorm:"column:id;primaryKey"`
	AccountID     *uuid.UUID `gorm:"column:account_id"`
	AttemptAt     time.Time  `gorm:"column:attempt_at"`
	IPAddress     *string    `gorm:"column:ip_address"`
	Status        string     `gorm:"column:status"`
	FailureReason string     `gorm:"column:failure_reason"`
	UserAgent     string     `gorm:"column:user_agent"`
}

func (loginAttemptModel) TableName() string { return "login_attempts" }

type externalLoginModel struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID      uuid.UUID `gorm:"column:account_id"`
	Provider       string    `gorm:"column:provider"`
	ProviderUserID string    `gorm:"column:provider_user_id"`
	Email          string    `gorm:"column:email"`
	LinkedAt       time.Time `gorm:"column:linked_at"`
}

func (externalLoginModel) TableName() string { return "external_logins" }

type authOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (authOutboxModel) TableName() string { return "auth_outbox" }

type authIdempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (authIdempotencyModel) TableName() string { return "auth_idempotency" }

func toDomainAccount(row accountModel) domain.Account {
	return domain.Account{
		ID:                       row.AccountID,
		Email:                    row.Email,
		PasswordHash:             row.PasswordHash,
		Role:                     row.Role,
		RefreshTokenHash:         deref(row.RefreshTokenHash),
		RefreshTokenExpiry:       row.RefreshTokenExpiry,
		EmailConfirmed:           row.EmailConfirmed,
		EmailConfirmationToken:   deref(row.EmailConfirmationToken),
		PasswordResetTokenHash:   deref(row.PasswordResetTokenHash),
		PasswordResetTokenExpiry: row.PasswordResetTokenExpiry,
		TwoFactorEnabled:         row.TwoFactorEnabled,
		TwoFactorCodeHash:        deref(row.TwoFactorCodeHash),
		TwoFactorCodeExpiry:      row.TwoFactorCodeExpiry,
		FailedLoginAttempts:      row.FailedLoginAttempts,
		LockoutUntil:             row.LockoutUntil,
		IsBanned:                 row.IsBanned,
		LastLoginAt:              row.LastLoginAt,
		LastLoginIP:              deref(row.LastLoginIP),
		CreatedAt:                row.CreatedAt,
		UpdatedAt:                row.UpdatedAt,
	}
}

func toDomainLoginAttempt(row loginAttemptModel) domain.LoginAttempt {
	return domain.LoginAttempt{
		ID:            row.ID,
		AccountID:     row.AccountID,
		AttemptAt:     row.AttemptAt,
		IPAddress:     deref(row.IPAddress),
		Status:        row.Status,
		FailureReason: row.FailureReason,
		UserAgent:     row.UserAgent,
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
