// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

// Package auth provides password authentication for credgate.
//
// # Domain Types
//
// User is the account record. It should be created with NewUser, which
// assigns the ID and requires an already computed password hash. The
// client-facing shape is PublicProfile, obtained with User.Profile; it never
// carries the password hash or reset state.
//
// # Primitives
//
//   - PasswordHasher / Argon2idHasher - salted argon2id hashing, bcrypt verify for legacy hashes
//   - TokenMinter - HS256 session tokens bound to a user ID
//   - CookiePolicy - the "jwt" cookie that carries session tokens
//   - ResetTokenManager - single-use, ten minute password reset tokens stored as SHA-256 hashes
//
// # Services
//
// CredentialService coordinates signup, login, logout, profile picture
// updates, session resolution and the forgot/reset password flow. It is
// created with NewCredentialService, which validates its dependencies.
//
// # Errors
//
// Errors that callers may act on wrap one of ErrValidation, ErrConflict,
// ErrInvalidCredentials, ErrInvalidResetToken or ErrInvalidSession. KindOf
// classifies an error; anything else is internal. Client-safe messages are
// attached with oops.Public.
package auth
