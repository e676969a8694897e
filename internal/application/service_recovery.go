package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shoplane/auth-service/internal/domain"
)

// ForgotPassword always succeeds from the caller's point of view once input
// passes validation. Whether the account exists is never observable.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}

	if limited := s.checkRate(ctx, forgotRateKey(email, req.IPAddress), s.cfg.ResetRateLimit, s.cfg.ResetRateWindow); limited {
		return domain.ErrRateLimited
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil || account.IsBanned {
		return nil
	}

	rawToken := randomHex(32)
	now := s.nowFn()
	if err := s.accounts.SetPasswordResetToken(ctx, account.ID, hashToken(rawToken), now.Add(s.cfg.PasswordResetTTL), now); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.notifyAsync(ctx, "password_reset", account.Email, func(nctx context.Context) error {
		return s.notifier.SendPasswordReset(nctx, account.Email, rawToken)
	})
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}

	rateKey := resetRateKey(req.Token, req.IPAddress)
	if limited := s.checkRate(ctx, rateKey, s.cfg.ResetRateLimit, s.cfg.ResetRateWindow); limited {
		return domain.ErrRateLimited
	}

	account, err := s.accounts.GetByPasswordResetTokenHash(ctx, hashToken(req.Token))
	if err != nil {
		return domain.ErrUnauthorized
	}
	now := s.nowFn()
	if account.PasswordResetTokenExpiry == nil || account.PasswordResetTokenExpiry.Before(now) {
		return domain.ErrUnauthorized
	}

	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, passwordHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	// A completed reset also revokes the standing refresh token; whoever
	// rotated the password owns the account from here on.
	if err := s.accounts.ClearRefreshToken(ctx, account.ID, now); err != nil {
		s.logger.WarnContext(ctx, "clear refresh token after reset",
			slog.String("operation", "reset_password"), slog.String("error", err.Error()))
	}

	if err := s.limiter.Reset(ctx, rateKey); err != nil {
		s.logger.WarnContext(ctx, "reset rate counter",
			slog.String("operation", "reset_password"), slog.String("error", err.Error()))
	}

	s.enqueueEvent(ctx, "auth.password.reset", account.ID.String(), map[string]any{
		"account_id": account.ID,
		"reset_at":   now,
	})
	return nil
}

// VerifyEmail consumes a single-use confirmation token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}

	account, err := s.accounts.GetByEmailConfirmationToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return domain.ErrUnauthorized
	}
	if account.EmailConfirmed {
		return nil
	}
	if err := s.accounts.ConfirmEmail(ctx, account.ID, s.nowFn()); err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}

	s.enqueueEvent(ctx, "auth.email.confirmed", account.ID.String(), map[string]any{
		"account_id": account.ID,
		"email":      account.Email,
	})
	return nil
}
