// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// User is an account record.
type User struct {
	ID           ulid.ULID
	FullName     string
	Email        string
	PasswordHash string
	ProfilePic   string

	// ResetTokenHash and ResetTokenExpiresAt describe the outstanding password
	// reset. They are both set or both nil.
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates a User with a fresh ID.
// The password hash must already be computed; NewUser never sees plaintext.
func NewUser(fullName, email, passwordHash string, now time.Time) (*User, error) {
	if strings.TrimSpace(fullName) == "" || strings.TrimSpace(email) == "" {
		return nil, errFieldsRequired
	}
	if passwordHash == "" {
		return nil, ErrEmptyPassword
	}
	now = now.UTC()
	return &User{
		ID:           ulid.Make(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// PendingReset returns the outstanding reset token hash and expiry.
// ok is false when no reset is pending.
func (u *User) PendingReset() (hash string, expiresAt time.Time, ok bool) {
	if u.ResetTokenHash == nil || u.ResetTokenExpiresAt == nil {
		return "", time.Time{}, false
	}
	return *u.ResetTokenHash, *u.ResetTokenExpiresAt, true
}

// setPendingReset records an outstanding reset, replacing any previous one.
func (u *User) setPendingReset(hash string, expiresAt time.Time) {
	u.ResetTokenHash = &hash
	u.ResetTokenExpiresAt = &expiresAt
}

// clearPendingReset removes the outstanding reset.
func (u *User) clearPendingReset() {
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
}

// PublicProfile is the user shape returned to clients.
type PublicProfile struct {
	ID         string    `json:"_id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Profile returns the client-facing view of u. It never includes the
// password hash or reset state.
func (u *User) Profile() PublicProfile {
	return PublicProfile{
		ID:         u.ID.String(),
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns an error wrapping ErrConflict if the
	// email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByResetTokenHash retrieves the user whose outstanding reset token
	// hash equals tokenHash and whose expiry is after now.
	GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*User, error)

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateProfilePic replaces the profile picture URL.
	UpdateProfilePic(ctx context.Context, id ulid.ULID, url string) error

	// SetResetToken records an outstanding reset, overwriting any previous one.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken atomically sets the password hash and clears the reset
	// fields of the user whose token hash matches and has not expired at now.
	// Returns the updated user, or an error wrapping ErrNotFound when no
	// user matched.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error)

	// ClearExpiredResetTokens clears reset fields that expired at or before now.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}
