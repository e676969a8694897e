package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/auth-service/internal/domain"
)

// Config is the immutable policy configuration injected at construction.
// Nothing in the orchestrator reads ambient/global state at call time.
type Config struct {
	DefaultRole string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	TwoFactorCodeTTL time.Duration
	PasswordResetTTL time.Duration

	FailedLoginThreshold int
	LockoutDuration      time.Duration

	LoginRateLimit     int
	LoginRateWindow    time.Duration
	RegisterRateLimit  int
	RegisterRateWindow time.Duration
	ResetRateLimit     int
	ResetRateWindow    time.Duration
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"ip_address"`
}

type RegisterResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Message   string    `json:"message"`
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// LoginResponse carries either a pending-2FA marker or a full token pair.
// Tokens are never returned while a second factor is outstanding.
type LoginResponse struct {
	RequiresTwoFactor bool   `json:"requires_two_factor"`
	Message           string `json:"message,omitempty"`

	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Role         string `json:"role,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

type TwoFactorConfirmRequest struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Role         string `json:"role"`
	ExpiresIn    int64  `json:"expires_in"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

type ForgotPasswordRequest struct {
	Email     string `json:"email"`
	IPAddress string `json:"ip_address"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
	IPAddress   string `json:"ip_address"`
}

type ExternalLoginRequest struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
}

type AccountSummary struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	EmailConfirmed bool      `json:"email_confirmed"`
	IsBanned       bool      `json:"is_banned"`
	CreatedAt      time.Time `json:"created_at"`
}

type LoginHistoryQuery struct {
	Page   int
	Limit  int
	Days   int
	Status string
}

type LoginHistoryItem struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	IPAddress     string    `json:"ip_address"`
}

func toAccountSummary(a domain.Account) AccountSummary {
	return AccountSummary{
		ID:             a.ID,
		Email:          a.Email,
		Role:           a.Role,
		EmailConfirmed: a.EmailConfirmed,
		IsBanned:       a.IsBanned,
		CreatedAt:      a.CreatedAt,
	}
}
