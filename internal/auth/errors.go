// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Sentinels for the error kinds callers are expected to branch on.
// Every error returned by this package that belongs to one of these kinds
// wraps the matching sentinel, so errors.Is can classify it.
var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks a duplicate email at signup.
	ErrConflict = errors.New("email already registered")

	// ErrInvalidCredentials marks a failed login. It never says which factor was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidResetToken marks an unknown, expired or already used reset token.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	// ErrInvalidSession marks a missing, malformed or expired session token.
	ErrInvalidSession = errors.New("invalid session token")
)

// Kind classifies an error for transport layers.
type Kind int

// Error kinds, in the order they are checked by KindOf.
const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindInvalidResetToken
	KindInvalidSession
)

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindInvalidResetToken:
		return "invalid_reset_token"
	case KindInvalidSession:
		return "invalid_session"
	default:
		return "internal"
	}
}

// KindOf reports which kind err belongs to. A nil error or an error that
// wraps none of the sentinels is KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials):
		return KindAuthentication
	case errors.Is(err, ErrInvalidResetToken):
		return KindInvalidResetToken
	case errors.Is(err, ErrInvalidSession):
		return KindInvalidSession
	default:
		return KindInternal
	}
}

// validationError builds a coded validation error carrying a client-safe message.
func validationError(code, public string) error {
	return oops.Code(code).Public(public).Wrap(ErrValidation)
}
