package application

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/auth-service/internal/domain"
	"github.com/shoplane/auth-service/internal/ports"
)

// In-memory fakes for the repository and infrastructure ports. They mirror
// the contracts the adapters honor: conditional rotation, idempotent clears,
// post-increment rate counting.

type fakeAccounts struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*domain.Account
	outbox *fakeOutbox
}

func newFakeAccounts(outbox *fakeOutbox) *fakeAccounts {
	return &fakeAccounts{byID: map[uuid.UUID]*domain.Account{}, outbox: outbox}
}

func (f *fakeAccounts) CreateWithOutboxTx(ctx context.Context, params ports.CreateAccountTxParams, event ports.OutboxEvent) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Email == params.Email {
			return domain.Account{}, domain.ErrConflict
		}
	}
	account := &domain.Account{
		ID:                     uuid.New(),
		Email:                  params.Email,
		PasswordHash:           params.PasswordHash,
		Role:                   params.Role,
		EmailConfirmed:         params.EmailConfirmed,
		EmailConfirmationToken: params.EmailConfirmationToken,
		CreatedAt:              params.RegisteredAtUTC,
		UpdatedAt:              params.RegisteredAtUTC,
	}
	f.byID[account.ID] = account
	f.outbox.append(event)
	return *account, nil
}

func (f *fakeAccounts) get(accountID uuid.UUID) (*domain.Account, error) {
	a, ok := f.byID[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccounts) GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return domain.Account{}, err
	}
	return *a, nil
}

func (f *fakeAccounts) findWhere(match func(*domain.Account) bool) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if match(a) {
			return *a, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return f.findWhere(func(a *domain.Account) bool { return a.Email == email })
}

func (f *fakeAccounts) GetByRefreshTokenHash(ctx context.Context, tokenHash string) (domain.Account, error) {
	return f.findWhere(func(a *domain.Account) bool {
		return a.RefreshTokenHash != "" && a.RefreshTokenHash == tokenHash
	})
}

func (f *fakeAccounts) GetByPasswordResetTokenHash(ctx context.Context, tokenHash string) (domain.Account, error) {
	return f.findWhere(func(a *domain.Account) bool {
		return a.PasswordResetTokenHash != "" && a.PasswordResetTokenHash == tokenHash
	})
}

func (f *fakeAccounts) GetByEmailConfirmationToken(ctx context.Context, token string) (domain.Account, error) {
	return f.findWhere(func(a *domain.Account) bool {
		return a.EmailConfirmationToken != "" && a.EmailConfirmationToken == token
	})
}

func (f *fakeAccounts) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]domain.Account, 0, len(f.byID))
	for _, a := range f.byID {
		all = append(all, *a)
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeAccounts) RecordLoginFailure(ctx context.Context, accountID uuid.UUID, failedAttempts int, lockoutUntil *time.Time, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.FailedLoginAttempts = failedAttempts
	a.LockoutUntil = lockoutUntil
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) RecordLoginSuccess(ctx context.Context, accountID uuid.UUID, ip string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.FailedLoginAttempts = 0
	a.LockoutUntil = nil
	loginAt := at
	a.LastLoginAt = &loginAt
	a.LastLoginIP = ip
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) ResetLoginCounters(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.FailedLoginAttempts = 0
	a.LockoutUntil = nil
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) SetRefreshToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiry time.Time, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.RefreshTokenHash = tokenHash
	a.RefreshTokenExpiry = &expiry
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) RotateRefreshToken(ctx context.Context, accountID uuid.UUID, oldTokenHash, newTokenHash string, expiry time.Time, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	if a.RefreshTokenHash != oldTokenHash {
		return domain.ErrNotFound
	}
	a.RefreshTokenHash = newTokenHash
	a.RefreshTokenExpiry = &expiry
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) ClearRefreshToken(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return nil
	}
	a.RefreshTokenHash = ""
	a.RefreshTokenExpiry = nil
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) SetTwoFactorChallenge(ctx context.Context, accountID uuid.UUID, codeHash string, expiry time.Time, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.TwoFactorCodeHash = codeHash
	a.TwoFactorCodeExpiry = &expiry
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) ClearTwoFactorChallenge(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.TwoFactorCodeHash = ""
	a.TwoFactorCodeExpiry = nil
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) SetTwoFactorEnabled(ctx context.Context, accountID uuid.UUID, enabled bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.TwoFactorEnabled = enabled
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) SetPasswordResetToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiry time.Time, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.PasswordResetTokenHash = tokenHash
	a.PasswordResetTokenExpiry = &expiry
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) UpdatePassword(ctx context.Context, accountID uuid.UUID, passwordHash string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.PasswordHash = passwordHash
	a.PasswordResetTokenHash = ""
	a.PasswordResetTokenExpiry = nil
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) ConfirmEmail(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.EmailConfirmed = true
	a.EmailConfirmationToken = ""
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) SetBanned(ctx context.Context, accountID uuid.UUID, banned bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.IsBanned = banned
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) SetRole(ctx context.Context, accountID uuid.UUID, role string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.get(accountID)
	if err != nil {
		return err
	}
	a.Role = role
	a.UpdatedAt = at
	return nil
}

func (f *fakeAccounts) Delete(ctx context.Context, accountID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[accountID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, accountID)
	return nil
}

func (f *fakeAccounts) snapshot(t *testing.T, accountID uuid.UUID) domain.Account {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[accountID]
	if !ok {
		t.Fatalf("account %s not found", accountID)
	}
	return *a
}

type fakeAttempts struct {
	mu       sync.Mutex
	attempts []domain.LoginAttempt
}

func (f *fakeAttempts) Insert(ctx context.Context, attempt domain.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt.ID = int64(len(f.attempts) + 1)
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeAttempts) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int, since *time.Time, status string) ([]domain.LoginAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []domain.LoginAttempt
	for _, a := range f.attempts {
		if a.AccountID == nil || *a.AccountID != accountID {
			continue
		}
		if since != nil && a.AttemptAt.Before(*since) {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		matched = append(matched, a)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (f *fakeAttempts) all() []domain.LoginAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LoginAttempt(nil), f.attempts...)
}

type fakeExternals struct {
	mu    sync.Mutex
	links map[string]uuid.UUID
}

func newFakeExternals() *fakeExternals {
	return &fakeExternals{links: map[string]uuid.UUID{}}
}

func (f *fakeExternals) FindAccountID(ctx context.Context, provider, providerUserID string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.links[provider+"|"+providerUserID]
	if !ok {
		return uuid.Nil, domain.ErrNotFound
	}
	return id, nil
}

func (f *fakeExternals) Upsert(ctx context.Context, accountID uuid.UUID, provider, providerUserID, email string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[provider+"|"+providerUserID] = accountID
	return nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
}

func (f *fakeOutbox) append(event ports.OutboxEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeOutbox) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	f.append(event)
	return nil
}

func (f *fakeOutbox) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return nil
}

func (f *fakeOutbox) MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return nil
}

func (f *fakeOutbox) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.EventType)
	}
	return types
}

func (f *fakeOutbox) hasEvent(eventType string) bool {
	for _, t := range f.eventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

type fakeIdempotency struct {
	mu      sync.Mutex
	records map[string]*ports.IdempotencyRecord
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{records: map[string]*ports.IdempotencyRecord{}}
}

func (f *fakeIdempotency) Get(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeIdempotency) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[key]; ok {
		return domain.ErrConflict
	}
	f.records[key] = &ports.IdempotencyRecord{Key: key, RequestHash: requestHash, Status: ports.IdempotencyStatusPending, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeIdempotency) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = ports.IdempotencyStatusCompleted
	rec.ResponseCode = responseCode
	rec.ResponseBody = responseBody
	return nil
}

// fakeLimiter counts for real so boundary tests exercise the same
// post-increment comparison the Redis adapter performs.
type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int{}}
}

func (f *fakeLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.counts[key]++
	return f.counts[key] > limit, nil
}

func (f *fakeLimiter) Reset(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, key)
	return nil
}

func (f *fakeLimiter) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

type fakeBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{entries: map[string]time.Time{}}
}

func (f *fakeBlacklist) Add(ctx context.Context, token, tokenType string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[tokenType+"|"+token] = time.Now().Add(ttl)
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(ctx context.Context, token, tokenType string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	expiry, ok := f.entries[tokenType+"|"+token]
	return ok && expiry.After(time.Now()), nil
}

type sentMail struct {
	kind  string
	email string
	value string
}

// fakeNotifier pushes into a buffered channel so tests can wait on the
// fire-and-forget goroutine without sleeping.
type fakeNotifier struct {
	ch chan sentMail
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan sentMail, 16)}
}

func (f *fakeNotifier) SendConfirmation(ctx context.Context, email, token string) error {
	f.ch <- sentMail{kind: "confirmation", email: email, value: token}
	return nil
}

func (f *fakeNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	f.ch <- sentMail{kind: "password_reset", email: email, value: token}
	return nil
}

func (f *fakeNotifier) SendTwoFactorCode(ctx context.Context, email, code string) error {
	f.ch <- sentMail{kind: "two_factor_code", email: email, value: code}
	return nil
}

func (f *fakeNotifier) wait(t *testing.T) sentMail {
	t.Helper()
	select {
	case m := <-f.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return sentMail{}
	}
}

type fakeSigner struct {
	mu    sync.Mutex
	seq   int
	valid map[string]ports.AccessClaims
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{valid: map[string]ports.AccessClaims{}}
}

func (f *fakeSigner) IssueAccessToken(claims ports.AccessClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "access-" + claims.TokenID
	f.valid[token] = claims
	return token, nil
}

func (f *fakeSigner) IssueRefreshToken() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return "refresh-" + strconv.Itoa(f.seq), nil
}

func (f *fakeSigner) Validate(token string) *ports.AccessClaims {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.valid[token]
	if !ok || claims.ExpiresAt.Before(time.Now()) {
		return nil
	}
	return &claims
}

func (f *fakeSigner) ExpiryOf(token string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.valid[token]
	if !ok {
		return time.Time{}, domain.ErrMalformedToken
	}
	return claims.ExpiresAt, nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Verify(password, hash string) bool {
	return hash == "hashed:"+password
}

type fixture struct {
	svc       *Service
	accounts  *fakeAccounts
	attempts  *fakeAttempts
	externals *fakeExternals
	outbox    *fakeOutbox
	idem      *fakeIdempotency
	limiter   *fakeLimiter
	blacklist *fakeBlacklist
	notifier  *fakeNotifier
	signer    *fakeSigner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	outbox := &fakeOutbox{}
	f := &fixture{
		accounts:  newFakeAccounts(outbox),
		attempts:  &fakeAttempts{},
		externals: newFakeExternals(),
		outbox:    outbox,
		idem:      newFakeIdempotency(),
		limiter:   newFakeLimiter(),
		blacklist: newFakeBlacklist(),
		notifier:  newFakeNotifier(),
		signer:    newFakeSigner(),
	}
	f.svc = NewService(Dependencies{
		Config: Config{
			DefaultRole:          domain.RoleClient,
			AccessTokenTTL:       30 * time.Minute,
			RefreshTokenTTL:      7 * 24 * time.Hour,
			TwoFactorCodeTTL:     5 * time.Minute,
			PasswordResetTTL:     time.Hour,
			FailedLoginThreshold: 3,
			LockoutDuration:      30 * time.Minute,
			LoginRateLimit:       5,
			LoginRateWindow:      15 * time.Minute,
			RegisterRateLimit:    3,
			RegisterRateWindow:   time.Hour,
			ResetRateLimit:       3,
			ResetRateWindow:      time.Hour,
		},
		Accounts:      f.accounts,
		LoginAttempts: f.attempts,
		Externals:     f.externals,
		Outbox:        f.outbox,
		Idempotency:   f.idem,
		Limiter:       f.limiter,
		Blacklist:     f.blacklist,
		Notifier:      f.notifier,
		Hasher:        fakeHasher{},
		TokenSigner:   f.signer,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

const testPassword = "Sup3rSecret!"

// seedAccount inserts a confirmed account ready to log in.
func (f *fixture) seedAccount(t *testing.T, email string) domain.Account {
	t.Helper()
	account, err := f.accounts.CreateWithOutboxTx(context.Background(), ports.CreateAccountTxParams{
		Email:           email,
		PasswordHash:    "hashed:" + testPassword,
		Role:            domain.RoleClient,
		EmailConfirmed:  true,
		RegisteredAtUTC: time.Now().UTC(),
	}, ports.OutboxEvent{EventID: uuid.New(), EventType: "seed"})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}

func (f *fixture) mutateAccount(t *testing.T, accountID uuid.UUID, mutate func(*domain.Account)) {
	t.Helper()
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()
	a, ok := f.accounts.byID[accountID]
	if !ok {
		t.Fatalf("account %s not found", accountID)
	}
	mutate(a)
}
