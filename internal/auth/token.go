package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultIssuer = "shortlink"

// TokenIssuer signs and verifies HS256 session tokens whose subject is the principal.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenClock replaces the wall clock, mainly for tests.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		t.now = now
	}
}

// WithIssuer sets the iss claim written and required by the issuer.
func WithIssuer(issuer string) TokenOption {
	return func(t *TokenIssuer) {
		t.issuer = issuer
	}
}

// NewTokenIssuer creates an issuer of tokens valid for ttl. An empty secret
// is replaced by a random one, so tokens do not survive a restart.
func NewTokenIssuer(secret string, ttl time.Duration, logger *zap.Logger, opts ...TokenOption) (*TokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}

		logger.Warn("no JWT secret configured, using a random one; sessions end on restart")
	}

	t := &TokenIssuer{
		secret: key,
		issuer: defaultIssuer,
		ttl:    ttl,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Issue returns a signed token for principal and its expiry.
func (t *TokenIssuer) Issue(principal string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   principal,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Parse verifies token and returns its principal.
func (t *TokenIssuer) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// TTL returns how long issued tokens are valid.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}
