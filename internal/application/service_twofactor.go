package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SetTwoFactor toggles email-code two-factor for the authenticated account.
// Disabling also discards any outstanding challenge.
func (s *Service) SetTwoFactor(ctx context.Context, accountID uuid.UUID, enabled bool) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	now := s.nowFn()
	if err := s.accounts.SetTwoFactorEnabled(ctx, account.ID, enabled, now); err != nil {
		return fmt.Errorf("set two factor: %w", err)
	}
	if !enabled && account.TwoFactorCodeHash != "" {
		if err := s.accounts.ClearTwoFactorChallenge(ctx, account.ID, now); err != nil {
			return fmt.Errorf("clear 2fa challenge: %w", err)
		}
	}
	return nil
}
