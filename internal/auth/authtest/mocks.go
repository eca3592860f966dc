// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

// Package authtest provides testify mocks for the auth collaborators.
package authtest

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/credgate/credgate/internal/auth"
)

// T is the subset of testing.TB the mock constructors need.
type T interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository that asserts its
// expectations when the test ends.
func NewMockUserRepository(t T) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func userOrNil(args mock.Arguments, i int) *auth.User {
	u, _ := args.Get(i).(*auth.User) //nolint:errcheck // nil is a valid mock return
	return u
}

// Create records the call.
func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

// GetByID records the call.
func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	return userOrNil(args, 0), args.Error(1)
}

// GetByEmail records the call.
func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	return userOrNil(args, 0), args.Error(1)
}

// GetByResetTokenHash records the call.
func (m *MockUserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, tokenHash, now)
	return userOrNil(args, 0), args.Error(1)
}

// UpdatePassword records the call.
func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

// UpdateProfilePic records the call.
func (m *MockUserRepository) UpdateProfilePic(ctx context.Context, id ulid.ULID, url string) error {
	return m.Called(ctx, id, url).Error(0)
}

// SetResetToken records the call.
func (m *MockUserRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, id, tokenHash, expiresAt).Error(0)
}

// ConsumeResetToken records the call.
func (m *MockUserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, tokenHash, passwordHash, now)
	return userOrNil(args, 0), args.Error(1)
}

// ClearExpiredResetTokens records the call.
func (m *MockUserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64) //nolint:errcheck // zero is a valid mock return
	return n, args.Error(1)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher.
func NewMockPasswordHasher(t T) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash records the call.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify records the call.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade records the call.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockImageUploader is a mock auth.ImageUploader.
type MockImageUploader struct {
	mock.Mock
}

// NewMockImageUploader creates a MockImageUploader.
func NewMockImageUploader(t T) *MockImageUploader {
	m := &MockImageUploader{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Upload records the call.
func (m *MockImageUploader) Upload(ctx context.Context, imageData string) (string, error) {
	args := m.Called(ctx, imageData)
	return args.String(0), args.Error(1)
}

// MockResetNotifier is a mock auth.ResetNotifier.
type MockResetNotifier struct {
	mock.Mock
}

// NewMockResetNotifier creates a MockResetNotifier.
func NewMockResetNotifier(t T) *MockResetNotifier {
	m := &MockResetNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// SendPasswordReset records the call.
func (m *MockResetNotifier) SendPasswordReset(ctx context.Context, notice auth.ResetNotice) error {
	return m.Called(ctx, notice).Error(0)
}

// Compile-time interface checks.
var (
	_ auth.UserRepository = (*MockUserRepository)(nil)
	_ auth.PasswordHasher = (*MockPasswordHasher)(nil)
	_ auth.ImageUploader  = (*MockImageUploader)(nil)
	_ auth.ResetNotifier  = (*MockResetNotifier)(nil)
)
