package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shoplane/auth-service/internal/domain"
)

// Admin operations assume the caller's Admin role was enforced at the
// transport boundary. Target-not-found propagates as domain.ErrNotFound.

func (s *Service) ListAccounts(ctx context.Context, page, limit int) ([]AccountSummary, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	accounts, err := s.accounts.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	result := make([]AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		result = append(result, toAccountSummary(account))
	}
	return result, nil
}

// SetAccountBanned flips the administrative ban flag. Banning also revokes
// the standing refresh token so the session dies at the next refresh.
func (s *Service) SetAccountBanned(ctx context.Context, accountID uuid.UUID, banned bool) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	now := s.nowFn()
	if err := s.accounts.SetBanned(ctx, account.ID, banned, now); err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	if banned {
		if err := s.accounts.ClearRefreshToken(ctx, account.ID, now); err != nil {
			return fmt.Errorf("clear refresh token: %w", err)
		}
	}

	eventType := "auth.account.unbanned"
	if banned {
		eventType = "auth.account.banned"
	}
	s.enqueueEvent(ctx, eventType, account.ID.String(), map[string]any{
		"account_id": account.ID,
		"changed_at": now,
	})
	return nil
}

func (s *Service) ChangeAccountRole(ctx context.Context, accountID uuid.UUID, role string) error {
	if role != domain.RoleClient && role != domain.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	return s.accounts.SetRole(ctx, account.ID, role, s.nowFn())
}

// ConfirmAccountEmail is the administrative override for the email-token flow.
func (s *Service) ConfirmAccountEmail(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.EmailConfirmed {
		return nil
	}
	return s.accounts.ConfirmEmail(ctx, account.ID, s.nowFn())
}

func (s *Service) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.enqueueEvent(ctx, "auth.account.deleted", account.ID.String(), map[string]any{
		"account_id": account.ID,
		"email":      account.Email,
	})
	return nil
}
