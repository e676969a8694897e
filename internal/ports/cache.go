package ports

import (
	"context"
	"time"
)

// RateLimiter bounds sensitive operations per identity and origin.
//
// CheckAndIncrement is deliberately a single atomic operation: the counter is
// incremented first and the post-increment value compared against the limit,
// so two concurrent requests can never both observe a pre-increment count.
type RateLimiter interface {
	// CheckAndIncrement returns true when the post-increment count exceeds limit.
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Reset deletes the counter, un-penalizing future legitimate attempts.
	Reset(ctx context.Context, key string) error
}

// Token type labels for blacklist entries.
const (
	TokenTypeAccess = "access"
)

// TokenBlacklist is a denylist of revoked tokens with automatic expiry.
// Entries never outlive the token's own expiry: TTL is always computed as
// token_expiry - now at revocation time.
type TokenBlacklist interface {
	// Add is a no-op when ttl <= 0 (the token has already expired).
	Add(ctx context.Context, token, tokenType string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token, tokenType string) (bool, error)
}
