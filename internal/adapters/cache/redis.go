package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisRateLimiter is a fixed-window counter per key.
type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// CheckAndIncrement bumps the window counter and compares the post-increment
// value against the limit. INCR is atomic, so two concurrent callers see
// distinct counts and the limit cannot be overshot by racing reads. The
// window TTL is attached only when the counter is created, which keeps the
// window fixed rather than sliding.
func (l *RedisRateLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := "auth:ratelimit:" + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("set rate window: %w", err)
		}
	}
	return count > int64(limit), nil
}

func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, "auth:ratelimit:"+key).Err()
}

// RedisTokenBlacklist stores revoked token fingerprints with automatic expiry.
type RedisTokenBlacklist struct {
	client *redis.Client
}

func NewRedisTokenBlacklist(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client}
}

// Add records the token as revoked until its own expiry. Tokens already past
// expiry need no entry; Redis would reject a non-positive TTL anyway.
func (b *RedisTokenBlacklist) Add(ctx context.Context, token, tokenType string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, blacklistKey(token, tokenType), "1", ttl).Err()
}

func (b *RedisTokenBlacklist) IsBlacklisted(ctx context.Context, token, tokenType string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistKey(token, tokenType)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Raw tokens never land in Redis; only their fingerprints do.
func blacklistKey(token, tokenType string) string {
	return "auth:blacklist:" + tokenType + ":" + fingerprint(token)
}
