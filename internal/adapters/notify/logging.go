package notify

import (
	"context"
	"log/slog"
)

// LoggingSender logs instead of delivering. Used locally and in tests so no
// SMTP endpoint is required. Tokens and codes are never written to the log.
type LoggingSender struct {
	logger *slog.Logger
}

func NewLoggingSender(logger *slog.Logger) *LoggingSender {
	return &LoggingSender{logger: logger}
}

func (s *LoggingSender) SendConfirmation(ctx context.Context, email, _ string) error {
	s.logger.InfoContext(ctx, "confirmation email suppressed", "email", email)
	return nil
}

func (s *LoggingSender) SendPasswordReset(ctx context.Context, email, _ string) error {
	s.logger.InfoContext(ctx, "password reset email suppressed", "email", email)
	return nil
}

func (s *LoggingSender) SendTwoFactorCode(ctx context.Context, email, _ string) error {
	s.logger.InfoContext(ctx, "two-factor code email suppressed", "email", email)
	return nil
}
