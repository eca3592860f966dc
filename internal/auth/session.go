// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenExpiry = 7 * 24 * time.Hour // 7 day expiry
	SessionIssuer      = "credgate"

	// MinSessionSecretLength is the smallest accepted HS256 secret, in bytes.
	MinSessionSecretLength = 32
)

// SessionClaims are the JWT claims of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// TokenMinter issues and verifies signed session tokens.
type TokenMinter struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenMinterOption configures a TokenMinter.
type TokenMinterOption func(*TokenMinter)

// WithTokenClock overrides the minter's clock.
func WithTokenClock(now func() time.Time) TokenMinterOption {
	return func(m *TokenMinter) { m.now = now }
}

// WithTokenTTL overrides the session lifetime.
func WithTokenTTL(ttl time.Duration) TokenMinterOption {
	return func(m *TokenMinter) { m.ttl = ttl }
}

// NewTokenMinter creates a TokenMinter signing with secret.
func NewTokenMinter(secret []byte, opts ...TokenMinterOption) (*TokenMinter, error) {
	if len(secret) < MinSessionSecretLength {
		return nil, oops.Code("SESSION_SECRET_TOO_SHORT").
			With("min", MinSessionSecretLength).
			With("actual", len(secret)).
			Errorf("session secret must be at least %d bytes", MinSessionSecretLength)
	}
	m := &TokenMinter{
		secret: append([]byte(nil), secret...),
		ttl:    SessionTokenExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_TTL").With("ttl", m.ttl.String()).Errorf("session ttl must be positive")
	}
	return m, nil
}

// TTL returns the lifetime of issued tokens.
func (m *TokenMinter) TTL() time.Duration {
	return m.ttl
}

// Issue signs a session token for userID.
func (m *TokenMinter) Issue(userID ulid.ULID) (string, time.Time, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return "", time.Time{}, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}

	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    SessionIssuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID.String(),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of token and returns the user ID it
// was issued for. Every failure wraps ErrInvalidSession.
func (m *TokenMinter) Verify(token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("SESSION_MISSING").Wrap(ErrInvalidSession)
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(SessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return ulid.ULID{}, oops.Code("SESSION_INVALID").With("reason", err.Error()).Wrap(ErrInvalidSession)
	}
	if !parsed.Valid {
		return ulid.ULID{}, oops.Code("SESSION_INVALID").Wrap(ErrInvalidSession)
	}

	userID, err := ulid.Parse(claims.UserID)
	if err != nil {
		return ulid.ULID{}, oops.Code("SESSION_INVALID").With("reason", "malformed user id").Wrap(ErrInvalidSession)
	}
	return userID, nil
}
