// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32               // 32 bytes = 64 hex chars
	ResetTokenExpiry = 10 * time.Minute // 10 minute expiry
)

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the user; the hash is stored in the database.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashResetToken(token)

	return token, hash, nil
}

// HashResetToken computes the SHA256 hash of a reset token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyResetToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// errResetTokenInvalid is returned for every rejected reset token, whether
// it never existed, expired, or was already used.
var errResetTokenInvalid = oops.Code("RESET_TOKEN_INVALID").
	Public("Invalid or expired reset token").
	Wrap(ErrInvalidResetToken)

// ResetTokenManager owns the outstanding-reset state of users.
//
// A user moves from no pending reset to a pending reset on Generate and back
// on a successful VerifyAndConsume. Generating again replaces the previous
// token.
type ResetTokenManager struct {
	users UserRepository
	ttl   time.Duration
	now   func() time.Time
}

// ResetTokenManagerOption configures a ResetTokenManager.
type ResetTokenManagerOption func(*ResetTokenManager)

// WithResetClock overrides the manager's clock.
func WithResetClock(now func() time.Time) ResetTokenManagerOption {
	return func(m *ResetTokenManager) { m.now = now }
}

// NewResetTokenManager creates a ResetTokenManager over users.
func NewResetTokenManager(users UserRepository, opts ...ResetTokenManagerOption) (*ResetTokenManager, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	m := &ResetTokenManager{
		users: users,
		ttl:   ResetTokenExpiry,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Generate creates a reset token for user and stores its hash and expiry.
// The plaintext is returned for out-of-band delivery and is never persisted.
func (m *ResetTokenManager) Generate(ctx context.Context, user *User) (string, error) {
	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", err
	}

	expiresAt := m.now().Add(m.ttl).UTC()
	if err := m.users.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return "", oops.Code("RESET_TOKEN_STORE_FAILED").
			With("operation", "SetResetToken").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	user.setPendingReset(hash, expiresAt)
	return token, nil
}

// Validate reports whether token is outstanding without consuming it.
func (m *ResetTokenManager) Validate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, errResetTokenInvalid
	}
	now := m.now()

	user, err := m.users.GetByResetTokenHash(ctx, HashResetToken(token), now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errResetTokenInvalid
		}
		return nil, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "GetByResetTokenHash").
			Wrap(err)
	}

	// The store already filters on expiry; this guards stores that do not.
	hash, expiresAt, ok := user.PendingReset()
	if !ok || !now.Before(expiresAt) || !VerifyResetToken(token, hash) {
		return nil, errResetTokenInvalid
	}
	return user, nil
}

// VerifyAndConsume redeems token: the matching user's password hash becomes
// newPasswordHash and the reset is cleared, in one store write. Only one
// caller can redeem a given token.
func (m *ResetTokenManager) VerifyAndConsume(ctx context.Context, token, newPasswordHash string) (*User, error) {
	if token == "" {
		return nil, errResetTokenInvalid
	}
	if newPasswordHash == "" {
		return nil, ErrEmptyPassword
	}

	user, err := m.users.ConsumeResetToken(ctx, HashResetToken(token), newPasswordHash, m.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errResetTokenInvalid
		}
		return nil, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "ConsumeResetToken").
			Wrap(err)
	}

	user.clearPendingReset()
	return user, nil
}

// PurgeExpired clears every reset that has expired. Returns the number of
// users touched.
func (m *ResetTokenManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.users.ClearExpiredResetTokens(ctx, m.now())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").
			With("operation", "ClearExpiredResetTokens").
			Wrap(err)
	}
	return n, nil
}
