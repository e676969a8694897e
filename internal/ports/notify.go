package ports

import "context"

// NotificationSender dispatches transactional auth emails.
// It is fire-and-forget from the orchestrator's perspective: delivery
// failures are logged by the caller, never propagated as flow failures.
type NotificationSender interface {
	SendConfirmation(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
	SendTwoFactorCode(ctx context.Context, email, code string) error
}
