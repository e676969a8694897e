package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/auth-service/internal/domain"
	"github.com/shoplane/auth-service/internal/ports"
)

type Service struct {
	cfg           Config
	accounts      ports.AccountRepository
	loginAttempts ports.LoginAttemptRepository
	externals     ports.ExternalLoginRepository
	outbox        ports.OutboxRepository
	idempotency   ports.IdempotencyRepository
	limiter       ports.RateLimiter
	blacklist     ports.TokenBlacklist
	notifier      ports.NotificationSender
	hasher        ports.PasswordHasher
	tokenSigner   ports.TokenSigner
	logger        *slog.Logger
	nowFn         func() time.Time
}

type Dependencies struct {
	Config        Config
	Accounts      ports.AccountRepository
	LoginAttempts ports.LoginAttemptRepository
	Externals     ports.ExternalLoginRepository
	Outbox        ports.OutboxRepository
	Idempotency   ports.IdempotencyRepository
	Limiter       ports.RateLimiter
	Blacklist     ports.TokenBlacklist
	Notifier      ports.NotificationSender
	Hasher        ports.PasswordHasher
	TokenSigner   ports.TokenSigner
	Logger        *slog.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:           deps.Config,
		accounts:      deps.Accounts,
		loginAttempts: deps.LoginAttempts,
		externals:     deps.Externals,
		outbox:        deps.Outbox,
		idempotency:   deps.Idempotency,
		limiter:       deps.Limiter,
		blacklist:     deps.Blacklist,
		notifier:      deps.Notifier,
		hasher:        deps.Hasher,
		tokenSigner:   deps.TokenSigner,
		logger:        logger.With(slog.String("layer", "application")),
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest, idempotencyKey string) (RegisterResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, err
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return RegisterResponse{}, err
	}

	if limited := s.checkRate(ctx, registerRateKey(req.IPAddress), s.cfg.RegisterRateLimit, s.cfg.RegisterRateWindow); limited {
		return RegisterResponse{}, domain.ErrRateLimited
	}

	if idempotencyKey != "" {
		requestHash := hashRequest(req)
		existing, err := s.idempotency.Get(ctx, idempotencyKey)
		if err != nil {
			return RegisterResponse{}, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			// An exact retry of a completed request replays the stored
			// response. Any other reuse of the key is a conflict.
			if existing.Status == ports.IdempotencyStatusCompleted && existing.RequestHash == requestHash {
				var replay RegisterResponse
				if err := json.Unmarshal(existing.ResponseBody, &replay); err == nil {
					return replay, nil
				}
			}
			return RegisterResponse{}, fmt.Errorf("%w: key already used", domain.ErrIdempotencyConflict)
		}
		if err := s.idempotency.Reserve(ctx, idempotencyKey, requestHash, s.nowFn().Add(7*24*time.Hour)); err != nil {
			return RegisterResponse{}, fmt.Errorf("%w: %v", domain.ErrIdempotencyConflict, err)
		}
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	confirmationToken := randomHex(32)
	payload, _ := json.Marshal(map[string]any{
		"email":         email,
		"role":          s.cfg.DefaultRole,
		"registered_at": now,
	})

	event := ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "auth.account.registered",
		PartitionKey: email,
		Payload:      payload,
		OccurredAt:   now,
	}

	account, err := s.accounts.CreateWithOutboxTx(ctx, ports.CreateAccountTxParams{
		Email:                  email,
		PasswordHash:           passwordHash,
		Role:                   s.cfg.DefaultRole,
		EmailConfirmationToken: confirmationToken,
		IdempotencyKey:         idempotencyKey,
		RegisteredAtUTC:        now,
	}, event)
	if err != nil {
		return RegisterResponse{}, err
	}

	s.notifyAsync(ctx, "confirmation", email, func(nctx context.Context) error {
		return s.notifier.SendConfirmation(nctx, email, confirmationToken)
	})

	resp := RegisterResponse{AccountID: account.ID, Message: "confirmation email sent"}
	if idempotencyKey != "" {
		responseBody, _ := json.Marshal(resp)
		_ = s.idempotency.Complete(ctx, idempotencyKey, 201, responseBody, s.nowFn())
	}
	return resp, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, err
	}

	account, lookupErr := s.accounts.GetByEmail(ctx, email)
	if lookupErr == nil && account.IsBanned {
		// Banned wins over everything else and never advances any counter.
		return LoginResponse{}, domain.ErrAccountBanned
	}

	rateKey := loginRateKey(email, req.IPAddress)
	if limited := s.checkRate(ctx, rateKey, s.cfg.LoginRateLimit, s.cfg.LoginRateWindow); limited {
		return LoginResponse{}, domain.ErrRateLimited
	}

	if lookupErr != nil {
		s.recordFailure(ctx, nil, req.IPAddress, req.UserAgent, "ACCOUNT_NOT_FOUND")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	now := s.nowFn()
	if !s.hasher.Verify(req.Password, account.PasswordHash) {
		attempts := account.FailedLoginAttempts + 1
		var lockoutUntil *time.Time
		if attempts >= s.cfg.FailedLoginThreshold {
			until := now.Add(s.cfg.LockoutDuration)
			lockoutUntil = &until
			s.enqueueEvent(ctx, "auth.account.locked", account.ID.String(), map[string]any{
				"account_id":    account.ID,
				"locked_until":  until,
				"failed_logins": attempts,
			})
		}
		if err := s.accounts.RecordLoginFailure(ctx, account.ID, attempts, lockoutUntil, now); err != nil {
			s.logger.WarnContext(ctx, "record login failure",
				slog.String("operation", "login"), slog.String("error", err.Error()))
		}
		s.recordFailure(ctx, &account.ID, req.IPAddress, req.UserAgent, "INVALID_PASSWORD")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	// Checked after password verification so a correct password during an
	// active window still reports the lockout rather than succeeding.
	if account.LockedAt(now) {
		s.recordFailure(ctx, &account.ID, req.IPAddress, req.UserAgent, "ACCOUNT_LOCKED")
		return LoginResponse{}, fmt.Errorf("%w until %s", domain.ErrAccountLocked, account.LockoutUntil.UTC().Format(time.RFC3339))
	}

	// A verified password past the lockout gate settles the failure counters,
	// even if a later gate still stops this login.
	if account.FailedLoginAttempts > 0 || account.LockoutUntil != nil {
		if err := s.accounts.ResetLoginCounters(ctx, account.ID, now); err != nil {
			s.logger.WarnContext(ctx, "reset login counters",
				slog.String("operation", "login"), slog.String("error", err.Error()))
		}
	}

	if !account.EmailConfirmed {
		return LoginResponse{}, domain.ErrEmailNotConfirmed
	}

	if account.TwoFactorEnabled {
		code := randomDigits(6)
		if err := s.accounts.SetTwoFactorChallenge(ctx, account.ID, hashToken(code), now.Add(s.cfg.TwoFactorCodeTTL), now); err != nil {
			return LoginResponse{}, fmt.Errorf("store 2fa challenge: %w", err)
		}
		s.notifyAsync(ctx, "two_factor_code", account.Email, func(nctx context.Context) error {
			return s.notifier.SendTwoFactorCode(nctx, account.Email, code)
		})
		s.enqueueEvent(ctx, "auth.2fa.required", account.ID.String(), map[string]any{
			"account_id":   account.ID,
			"requested_at": now,
		})
		// The window counter survives until the code is confirmed.
		return LoginResponse{
			RequiresTwoFactor: true,
			Message:           "verification code sent",
		}, nil
	}

	if err := s.accounts.RecordLoginSuccess(ctx, account.ID, req.IPAddress, now); err != nil {
		return LoginResponse{}, fmt.Errorf("record login success: %w", err)
	}
	if err := s.limiter.Reset(ctx, rateKey); err != nil {
		s.logger.WarnContext(ctx, "reset login rate counter",
			slog.String("operation", "login"), slog.String("error", err.Error()))
	}

	pair, err := s.issueTokenPair(ctx, account)
	if err != nil {
		return LoginResponse{}, err
	}

	_ = s.loginAttempts.Insert(ctx, domain.LoginAttempt{
		AccountID: &account.ID,
		AttemptAt: now,
		IPAddress: req.IPAddress,
		Status:    "SUCCESS",
		UserAgent: req.UserAgent,
	})

	return LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Role:         pair.Role,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

func (s *Service) ConfirmTwoFactor(ctx context.Context, req TwoFactorConfirmRequest) (TokenPairResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return TokenPairResponse{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return TokenPairResponse{}, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return TokenPairResponse{}, domain.ErrUnauthorized
	}
	if account.IsBanned {
		return TokenPairResponse{}, domain.ErrAccountBanned
	}

	now := s.nowFn()
	if account.TwoFactorCodeHash == "" ||
		account.TwoFactorCodeExpiry == nil ||
		account.TwoFactorCodeExpiry.Before(now) ||
		account.TwoFactorCodeHash != hashToken(req.Code) {
		return TokenPairResponse{}, domain.ErrUnauthorized
	}

	if err := s.accounts.ClearTwoFactorChallenge(ctx, account.ID, now); err != nil {
		return TokenPairResponse{}, fmt.Errorf("clear 2fa challenge: %w", err)
	}
	if err := s.accounts.RecordLoginSuccess(ctx, account.ID, req.IPAddress, now); err != nil {
		return TokenPairResponse{}, fmt.Errorf("record login success: %w", err)
	}
	if err := s.limiter.Reset(ctx, loginRateKey(email, req.IPAddress)); err != nil {
		s.logger.WarnContext(ctx, "reset login rate counter",
			slog.String("operation", "confirm_two_factor"), slog.String("error", err.Error()))
	}

	pair, err := s.issueTokenPair(ctx, account)
	if err != nil {
		return TokenPairResponse{}, err
	}

	_ = s.loginAttempts.Insert(ctx, domain.LoginAttempt{
		AccountID: &account.ID,
		AttemptAt: now,
		IPAddress: req.IPAddress,
		Status:    "SUCCESS",
		UserAgent: req.UserAgent,
	})
	return pair, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPairResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPairResponse{}, fmt.Errorf("%w: refresh token is required", domain.ErrInvalidInput)
	}

	oldHash := hashToken(refreshToken)
	account, err := s.accounts.GetByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		return TokenPairResponse{}, domain.ErrUnauthorized
	}
	if account.IsBanned {
		return TokenPairResponse{}, domain.ErrAccountBanned
	}

	now := s.nowFn()
	if account.RefreshTokenExpiry == nil || account.RefreshTokenExpiry.Before(now) {
		return TokenPairResponse{}, domain.ErrUnauthorized
	}

	newRefresh, err := s.tokenSigner.IssueRefreshToken()
	if err != nil {
		return TokenPairResponse{}, fmt.Errorf("mint refresh token: %w", err)
	}

	// Conditional rotation: replaces the stored fingerprint only while the
	// presented token is still current, so of two concurrent refreshes with
	// the same token exactly one wins.
	err = s.accounts.RotateRefreshToken(ctx, account.ID, oldHash, hashToken(newRefresh), now.Add(s.cfg.RefreshTokenTTL), now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenPairResponse{}, domain.ErrUnauthorized
		}
		return TokenPairResponse{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	accessToken, err := s.signAccessToken(account, now)
	if err != nil {
		return TokenPairResponse{}, err
	}

	return TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		Role:         account.Role,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// Logout is idempotent: unknown refresh tokens and already-expired access
// tokens both succeed silently.
func (s *Service) Logout(ctx context.Context, req LogoutRequest) error {
	now := s.nowFn()

	if strings.TrimSpace(req.RefreshToken) != "" {
		account, err := s.accounts.GetByRefreshTokenHash(ctx, hashToken(req.RefreshToken))
		if err == nil {
			if err := s.accounts.ClearRefreshToken(ctx, account.ID, now); err != nil {
				return fmt.Errorf("clear refresh token: %w", err)
			}
		}
	}

	if strings.TrimSpace(req.AccessToken) != "" {
		expiry, err := s.tokenSigner.ExpiryOf(req.AccessToken)
		if err != nil {
			s.logger.WarnContext(ctx, "logout access token unparseable",
				slog.String("operation", "logout"), slog.String("error", err.Error()))
			return nil
		}
		if err := s.blacklist.Add(ctx, req.AccessToken, ports.TokenTypeAccess, expiry.Sub(now)); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}
	return nil
}

// ValidateAccessToken is the single check used by the HTTP middleware and the
// internal gRPC surface. Signature and blacklist only; no database round-trip.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (*ports.AccessClaims, error) {
	claims := s.tokenSigner.Validate(token)
	if claims == nil {
		return nil, domain.ErrUnauthorized
	}
	revoked, err := s.blacklist.IsBlacklisted(ctx, token, ports.TokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("blacklist lookup: %w", err)
	}
	if revoked {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func (s *Service) ListLoginHistory(ctx context.Context, accountID uuid.UUID, q LoginHistoryQuery) ([]LoginHistoryItem, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	offset := (q.Page - 1) * q.Limit

	var since *time.Time
	if q.Days > 0 {
		t := s.nowFn().Add(-time.Duration(q.Days) * 24 * time.Hour)
		since = &t
	}

	attempts, err := s.loginAttempts.ListByAccount(ctx, accountID, q.Limit, offset, since, strings.ToUpper(strings.TrimSpace(q.Status)))
	if err != nil {
		return nil, err
	}

	result := make([]LoginHistoryItem, 0, len(attempts))
	for _, attempt := range attempts {
		result = append(result, LoginHistoryItem{
			ID:            attempt.ID,
			Timestamp:     attempt.AttemptAt,
			Status:        attempt.Status,
			FailureReason: attempt.FailureReason,
			IPAddress:     attempt.IPAddress,
		})
	}
	return result, nil
}
