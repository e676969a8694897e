package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shoplane/auth-service/internal/domain"
	"github.com/shoplane/auth-service/internal/ports"
)

// HandleExternalLogin signs in (or provisions) an account for an identity
// already verified upstream by the provider callback. Accounts created here
// have no password and count their email as confirmed, since the provider
// attested to it.
func (s *Service) HandleExternalLogin(ctx context.Context, req ExternalLoginRequest) (TokenPairResponse, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	providerUserID := strings.TrimSpace(req.ProviderUserID)
	if provider == "" || providerUserID == "" {
		return TokenPairResponse{}, fmt.Errorf("%w: provider and provider_user_id are required", domain.ErrInvalidInput)
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return TokenPairResponse{}, err
	}

	now := s.nowFn()

	var account domain.Account
	accountID, err := s.externals.FindAccountID(ctx, provider, providerUserID)
	switch {
	case err == nil:
		account, err = s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return TokenPairResponse{}, err
		}
	default:
		account, err = s.accounts.GetByEmail(ctx, email)
		if err != nil {
			payload, _ := json.Marshal(map[string]any{
				"email":         email,
				"provider":      provider,
				"registered_at": now,
			})
			account, err = s.accounts.CreateWithOutboxTx(ctx, ports.CreateAccountTxParams{
				Email:           email,
				Role:            s.cfg.DefaultRole,
				EmailConfirmed:  true,
				RegisteredAtUTC: now,
			}, ports.OutboxEvent{
				EventID:      uuid.New(),
				EventType:    "auth.account.registered",
				PartitionKey: email,
				Payload:      payload,
				OccurredAt:   now,
			})
			if err != nil {
				return TokenPairResponse{}, err
			}
		}
	}

	if account.IsBanned {
		return TokenPairResponse{}, domain.ErrAccountBanned
	}

	if err := s.externals.Upsert(ctx, account.ID, provider, providerUserID, email, now); err != nil {
		return TokenPairResponse{}, fmt.Errorf("link external identity: %w", err)
	}
	if err := s.accounts.RecordLoginSuccess(ctx, account.ID, "", now); err != nil {
		return TokenPairResponse{}, fmt.Errorf("record login success: %w", err)
	}

	_ = s.loginAttempts.Insert(ctx, domain.LoginAttempt{
		AccountID: &account.ID,
		AttemptAt: now,
		Status:    "SUCCESS",
		UserAgent: "external:" + provider,
	})

	return s.issueTokenPair(ctx, account)
}
