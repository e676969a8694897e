package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/auth-service/internal/domain"
	"github.com/shoplane/auth-service/internal/ports"
)

// checkRate reports whether the caller is over the limit. Counter backend
// failures allow the request through rather than turning a cache outage into
// a global auth outage; the failure is logged.
func (s *Service) checkRate(ctx context.Context, key string, limit int, window time.Duration) bool {
	limited, err := s.limiter.CheckAndIncrement(ctx, key, limit, window)
	if err != nil {
		s.logger.WarnContext(ctx, "rate limiter unavailable",
			slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return limited
}

func (s *Service) recordFailure(ctx context.Context, accountID *uuid.UUID, ip, userAgent, reason string) {
	_ = s.loginAttempts.Insert(ctx, domain.LoginAttempt{
		AccountID:     accountID,
		AttemptAt:     s.nowFn(),
		IPAddress:     ip,
		Status:        "FAILED",
		FailureReason: reason,
		UserAgent:     userAgent,
	})
}

func (s *Service) enqueueEvent(ctx context.Context, eventType, partitionKey string, body map[string]any) {
	payload, _ := json.Marshal(body)
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      payload,
		OccurredAt:   s.nowFn(),
	}); err != nil {
		s.logger.WarnContext(ctx, "enqueue outbox event",
			slog.String("event_type", eventType), slog.String("error", err.Error()))
	}
}

// notifyAsync dispatches an email without blocking or failing the flow.
// The detached context survives the request; delivery gets its own deadline.
func (s *Service) notifyAsync(ctx context.Context, kind, email string, send func(context.Context) error) {
	detached := context.WithoutCancel(ctx)
	go func() {
		nctx, cancel := context.WithTimeout(detached, 15*time.Second)
		defer cancel()
		if err := send(nctx); err != nil {
			s.logger.Warn("send notification",
				slog.String("kind", kind), slog.String("email", email), slog.String("error", err.Error()))
		}
	}()
}

func (s *Service) signAccessToken(account domain.Account, now time.Time) (string, error) {
	token, err := s.tokenSigner.IssueAccessToken(ports.AccessClaims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	})
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// issueTokenPair mints both tokens and overwrites the stored refresh
// fingerprint, which revokes any previously issued refresh token.
func (s *Service) issueTokenPair(ctx context.Context, account domain.Account) (TokenPairResponse, error) {
	now := s.nowFn()
	accessToken, err := s.signAccessToken(account, now)
	if err != nil {
		return TokenPairResponse{}, err
	}

	refreshToken, err := s.tokenSigner.IssueRefreshToken()
	if err != nil {
		return TokenPairResponse{}, fmt.Errorf("mint refresh token: %w", err)
	}
	if err := s.accounts.SetRefreshToken(ctx, account.ID, hashToken(refreshToken), now.Add(s.cfg.RefreshTokenTTL), now); err != nil {
		return TokenPairResponse{}, fmt.Errorf("store refresh token: %w", err)
	}

	return TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Role:         account.Role,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

func loginRateKey(email, ip string) string {
	return "login:" + email + ":" + ip
}

func registerRateKey(ip string) string {
	return "register:" + ip
}

func forgotRateKey(email, ip string) string {
	return "forgot:" + email + ":" + ip
}

func resetRateKey(token, ip string) string {
	return "reset:" + hashToken(token) + ":" + ip
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

func hashRequest(req any) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

func randomHex(bytesLen int) string {
	raw := make([]byte, bytesLen)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}

func randomDigits(size int) string {
	if size <= 0 {
		size = 6
	}
	max := 1
	for i := 0; i < size; i++ {
		max *= 10
	}
	nRaw := make([]byte, 8)
	_, _ = rand.Read(nRaw)
	n := int(nRaw[0])<<24 | int(nRaw[1])<<16 | int(nRaw[2])<<8 | int(nRaw[3])
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%0*d", size, n%max)
}
