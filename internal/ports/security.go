package ports

import (
	"time"

	"github.com/google/uuid"
)

// PasswordHasher is the one-way credential hashing port.
type PasswordHasher interface {
	// Hash fails on empty input; the work factor is fixed at construction.
	Hash(password string) (string, error)
	// Verify never fails on malformed hashes; it simply reports false.
	Verify(password, hash string) bool
}

// AccessClaims is the validated identity carried by a signed access token.
type AccessClaims struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenSigner issues and validates signed access tokens and mints opaque
// refresh tokens. Access tokens are stateless and self-describing; refresh
// tokens are random bytes the server only ever stores as a hash.
type TokenSigner interface {
	IssueAccessToken(claims AccessClaims) (string, error)
	// IssueRefreshToken returns a base64 encoding of at least 256 random bits.
	IssueRefreshToken() (string, error)
	// Validate returns nil claims on any signature/issuer/audience/expiry
	// failure; the cause is logged internally, never surfaced to callers.
	Validate(token string) *AccessClaims
	// ExpiryOf extracts the expiry claim without enforcing token freshness.
	// Returns domain.ErrMalformedToken when the token cannot be parsed.
	ExpiryOf(token string) (time.Time, error)
}
