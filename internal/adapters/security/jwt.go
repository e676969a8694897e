package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shoplane/auth-service/internal/domain"
	"github.com/shoplane/auth-service/internal/ports"
)

const refreshTokenBytes = 64

// JWTSigner implements HS256 access-token signing and opaque refresh-token
// minting. The symmetric secret is held at adapter level so the application
// layer stays crypto-library agnostic.
type JWTSigner struct {
	secret   []byte
	issuer   string
	audience string
	logger   *slog.Logger
}

// NewJWTSigner builds a signer from the shared secret.
func NewJWTSigner(secret, issuer, audience string, logger *slog.Logger) (*JWTSigner, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("jwt issuer and audience are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTSigner{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		logger:   logger.With(slog.String("layer", "security")),
	}, nil
}

type accessJWTClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) IssueAccessToken(claims ports.AccessClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessJWTClaims{
		AccountID: claims.AccountID.String(),
		Email:     claims.Email,
		Role:      claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	return token.SignedString(s.secret)
}

// IssueRefreshToken mints 512 random bits, base64 encoded. The raw value is
// returned once to the caller; only its hash is ever persisted.
func (s *JWTSigner) IssueRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Validate returns nil on any failure. The cause is logged at debug level;
// callers uniformly treat nil as unauthorized.
func (s *JWTSigner) Validate(raw string) *ports.AccessClaims {
	parsed, err := jwt.ParseWithClaims(raw, &accessJWTClaims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		s.logger.Debug("access token rejected", slog.String("error", err.Error()))
		return nil
	}
	claims, ok := parsed.Claims.(*accessJWTClaims)
	if !ok || !parsed.Valid {
		return nil
	}
	accountID, err := uuid.Parse(claims.AccountID)
	if err != nil {
		s.logger.Debug("access token rejected", slog.String("error", "bad account_id claim"))
		return nil
	}

	return &ports.AccessClaims{
		AccountID: accountID,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
}

// ExpiryOf extracts the expiry claim without enforcing freshness or even
// signature validity. Logout needs the expiry of tokens that may already be
// past their lifetime.
func (s *JWTSigner) ExpiryOf(raw string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, &accessJWTClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	claims, ok := parsed.Claims.(*accessJWTClaims)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, domain.ErrMalformedToken
	}
	return claims.ExpiresAt.Time.UTC(), nil
}
