package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/auth-service/internal/domain"
	"github.com/shoplane/auth-service/internal/ports"
)

type Repositories struct {
	Accounts      ports.AccountRepository
	LoginAttempts ports.LoginAttemptRepository
	Externals     ports.ExternalLoginRepository
	Outbox        ports.OutboxRepository
	Idempotency   ports.IdempotencyRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Accounts:      &accountRepository{db: db},
		LoginAttempts: &loginAttemptRepository{db: db},
		Externals:     &externalLoginRepository{db: db},
		Outbox:        &outboxRepository{db: db},
		Idempotency:   &idempotencyRepository{db: db},
	}
}

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) CreateWithOutboxTx(ctx context.Context, params ports.CreateAccountTxParams, outboxEvent ports.OutboxEvent) (domain.Account, error) {
	var result domain.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := accountModel{
			Email:                  params.Email,
			PasswordHash:           params.PasswordHash,
			Role:                   params.Role,
			EmailConfirmed:         params.EmailConfirmed,
			EmailConfirmationToken: nullableString(params.EmailConfirmationToken),
			CreatedAt:              params.RegisteredAtUTC,
			UpdatedAt:              params.RegisteredAtUTC,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}

		payload := outboxEvent.Payload
		if len(payload) == 0 {
			payload = []byte(`{}`)
		}
		outbox := authOutboxModel{
			OutboxID:     outboxEvent.EventID,
			EventType:    outboxEvent.EventType,
			PartitionKey: rec.AccountID.String(),
			Payload:      string(payload),
			CreatedAt:    outboxEvent.OccurredAt,
			FirstSeenAt:  outboxEvent.OccurredAt,
		}
		if err := tx.Create(&outbox).Error; err != nil {
			return err
		}

		result = toDomainAccount(rec)
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return result, nil
}

func (r *accountRepository) GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error) {
	return r.getOne(ctx, "account_id = ?", accountID)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getOne(ctx, "email = ?", email)
}

func (r *accountRepository) GetByRefreshTokenHash(ctx context.Context, tokenHash string) (domain.Account, error) {
	return r.getOne(ctx, "refresh_token_hash = ?", tokenHash)
}

func (r *accountRepository) GetByPasswordResetTokenHash(ctx context.Context, tokenHash string) (domain.Account, error) {
	return r.getOne(ctx, "password_reset_token_hash = ?", tokenHash)
}

func (r *accountRepository) GetByEmailConfirmationToken(ctx context.Context, token string) (domain.Account, error) {
	return r.getOne(ctx, "email_confirmation_token = ?", token)
}

func (r *accountRepository) getOne(ctx context.Context, query string, arg any) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	var rows []accountModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainAccount(row))
	}
	return result, nil
}

func (r *accountRepository) RecordLoginFailure(ctx context.Context, accountID uuid.UUID, failedAttempts int, lockoutUntil *time.Time, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"failed_login_attempts": failedAttempts,
		"lockout_until":         lockoutUntil,
		"updated_at":            at,
	})
}

func (r *accountRepository) RecordLoginSuccess(ctx context.Context, accountID uuid.UUID, ip string, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"failed_login_attempts": 0,
		"lockout_until":         nil,
		"last_login_at":         at,
		"last_login_ip":         nullableString(ip),
		"updated_at":            at,
	})
}

func (r *accountRepository) ResetLoginCounters(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"failed_login_attempts": 0,
		"lockout_until":         nil,
		"updated_at":            at,
	})
}

func (r *accountRepository) SetRefreshToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiry time.Time, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"refresh_token_hash":   tokenHash,
		"refresh_token_expiry": expiry,
		"updated_at":           at,
	})
}

// RotateRefreshToken is a conditional update keyed on the old fingerprint.
// Under two concurrent rotations of the same token the second UPDATE matches
// zero rows and reports domain.ErrNotFound.
func (r *accountRepository) RotateRefreshToken(ctx context.Context, accountID uuid.UUID, oldTokenHash, newTokenHash string, expiry time.Time, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Where("refresh_token_hash = ?", oldTokenHash).
		Updates(map[string]any{
			"refresh_token_hash":   newTokenHash,
			"refresh_token_expiry": expiry,
			"updated_at":           at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *accountRepository) ClearRefreshToken(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	// No RowsAffected check: clearing an absent token is still success.
	return r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"refresh_token_hash":   nil,
			"refresh_token_expiry": nil,
			"updated_at":           at,
		}).Error
}

func (r *accountRepository) SetTwoFactorChallenge(ctx context.Context, accountID uuid.UUID, codeHash string, expiry time.Time, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"two_factor_code_hash":   codeHash,
		"two_factor_code_expiry": expiry,
		"updated_at":             at,
	})
}

func (r *accountRepository) ClearTwoFactorChallenge(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"two_factor_code_hash":   nil,
		"two_factor_code_expiry": nil,
		"updated_at":             at,
	})
}

func (r *accountRepository) SetTwoFactorEnabled(ctx context.Context, accountID uuid.UUID, enabled bool, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"two_factor_enabled": enabled,
		"updated_at":         at,
	})
}

func (r *accountRepository) SetPasswordResetToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiry time.Time, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"password_reset_token_hash":   tokenHash,
		"password_reset_token_expiry": expiry,
		"updated_at":                  at,
	})
}

// UpdatePassword consumes the reset token in the same statement that stores
// the new hash, so a token can never be replayed after a successful reset.
func (r *accountRepository) UpdatePassword(ctx context.Context, accountID uuid.UUID, passwordHash string, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"password_hash":               passwordHash,
		"password_reset_token_hash":   nil,
		"password_reset_token_expiry": nil,
		"updated_at":                  at,
	})
}

func (r *accountRepository) ConfirmEmail(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"email_confirmed":          true,
		"email_confirmation_token": nil,
		"updated_at":               at,
	})
}

func (r *accountRepository) SetBanned(ctx context.Context, accountID uuid.UUID, banned bool, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"is_banned":  banned,
		"updated_at": at,
	})
}

func (r *accountRepository) SetRole(ctx context.Context, accountID uuid.UUID, role string, at time.Time) error {
	return r.updateOne(ctx, accountID, map[string]any{
		"role":       role,
		"updated_at": at,
	})
}

func (r *accountRepository) Delete(ctx context.Context, accountID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&accountModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *accountRepository) updateOne(ctx context.Context, accountID uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
