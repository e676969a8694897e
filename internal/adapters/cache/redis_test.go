package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limited, err := limiter.CheckAndIncrement(ctx, "login:a@example.com:1.2.3.4", 5, 15*time.Minute)
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if limited {
			t.Fatalf("attempt %d limited before reaching the limit", i+1)
		}
	}

	limited, err := limiter.CheckAndIncrement(ctx, "login:a@example.com:1.2.3.4", 5, 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !limited {
		t.Fatal("sixth attempt should be limited")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.CheckAndIncrement(ctx, "login:a@example.com:1.1.1.1", 2, time.Minute); err != nil {
			t.Fatal(err)
		}
	}

	limited, err := limiter.CheckAndIncrement(ctx, "login:b@example.com:1.1.1.1", 2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if limited {
		t.Fatal("separate key should have its own counter")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.CheckAndIncrement(ctx, "register:9.9.9.9", 2, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if limited, _ := limiter.CheckAndIncrement(ctx, "register:9.9.9.9", 2, time.Minute); !limited {
		t.Fatal("expected limited before window expiry")
	}

	mr.FastForward(61 * time.Second)

	limited, err := limiter.CheckAndIncrement(ctx, "register:9.9.9.9", 2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if limited {
		t.Fatal("counter should restart after the window elapses")
	}
}

func TestRateLimiterReset(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := limiter.CheckAndIncrement(ctx, "login:c@example.com:2.2.2.2", 3, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if err := limiter.Reset(ctx, "login:c@example.com:2.2.2.2"); err != nil {
		t.Fatal(err)
	}

	limited, err := limiter.CheckAndIncrement(ctx, "login:c@example.com:2.2.2.2", 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if limited {
		t.Fatal("counter should start over after reset")
	}
}

func TestBlacklistAddAndLookup(t *testing.T) {
	_, client := newTestClient(t)
	blacklist := NewRedisTokenBlacklist(client)
	ctx := context.Background()

	if err := blacklist.Add(ctx, "token-abc", "access", time.Minute); err != nil {
		t.Fatal(err)
	}

	revoked, err := blacklist.IsBlacklisted(ctx, "token-abc", "access")
	if err != nil {
		t.Fatal(err)
	}
	if !revoked {
		t.Fatal("added token should report blacklisted")
	}

	other, err := blacklist.IsBlacklisted(ctx, "token-xyz", "access")
	if err != nil {
		t.Fatal(err)
	}
	if other {
		t.Fatal("unknown token should not report blacklisted")
	}
}

func TestBlacklistEntryExpires(t *testing.T) {
	mr, client := newTestClient(t)
	blacklist := NewRedisTokenBlacklist(client)
	ctx := context.Background()

	if err := blacklist.Add(ctx, "token-short", "access", 10*time.Second); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(11 * time.Second)

	revoked, err := blacklist.IsBlacklisted(ctx, "token-short", "access")
	if err != nil {
		t.Fatal(err)
	}
	if revoked {
		t.Fatal("entry should expire with the token")
	}
}

func TestBlacklistExpiredTokenIsNoop(t *testing.T) {
	_, client := newTestClient(t)
	blacklist := NewRedisTokenBlacklist(client)
	ctx := context.Background()

	if err := blacklist.Add(ctx, "token-dead", "access", -time.Minute); err != nil {
		t.Fatalf("negative ttl should be a silent no-op, got %v", err)
	}
	if err := blacklist.Add(ctx, "token-dead", "access", 0); err != nil {
		t.Fatalf("zero ttl should be a silent no-op, got %v", err)
	}

	revoked, err := blacklist.IsBlacklisted(ctx, "token-dead", "access")
	if err != nil {
		t.Fatal(err)
	}
	if revoked {
		t.Fatal("no entry should exist for an already-expired token")
	}
}
