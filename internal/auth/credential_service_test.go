// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/credgate/credgate/internal/auth"
	"github.com/credgate/credgate/internal/auth/authtest"
	"github.com/credgate/credgate/internal/auth/memory"
	"github.com/credgate/credgate/pkg/errutil"
)

// captureNotifier records reset notices.
type captureNotifier struct {
	mu      sync.Mutex
	notices []auth.ResetNotice
	err     error
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, notice auth.ResetNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *captureNotifier) sent() []auth.ResetNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.ResetNotice(nil), n.notices...)
}

// countingRecorder tallies operation outcomes.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordAuthOperation(operation, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[operation+"/"+result]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

type serviceFixture struct {
	ctx      context.Context
	now      time.Time
	repo     *memory.UserRepository
	hasher   *auth.Argon2idHasher
	tokens   *auth.TokenMinter
	resets   *auth.ResetTokenManager
	images   *authtest.MockImageUploader
	notifier *captureNotifier
	recorder *countingRecorder
	logs     *bytes.Buffer
	svc      *auth.CredentialService
}

func newServiceFixture(t *testing.T, opts auth.Options) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		ctx:      context.Background(),
		now:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		repo:     memory.NewUserRepository(),
		hasher:   newFastHasher(t),
		images:   authtest.NewMockImageUploader(t),
		notifier: &captureNotifier{},
		recorder: &countingRecorder{},
		logs:     &bytes.Buffer{},
	}
	clock := fixedClock(&f.now)

	var err error
	f.tokens, err = auth.NewTokenMinter(testSecret, auth.WithTokenClock(clock))
	require.NoError(t, err)
	f.resets, err = auth.NewResetTokenManager(f.repo, auth.WithResetClock(clock))
	require.NoError(t, err)

	if opts.DummyHash == "" {
		opts.DummyHash, err = f.hasher.Hash("not-a-real-password")
		require.NoError(t, err)
	}
	opts.Now = clock

	f.svc, err = auth.NewCredentialService(auth.Deps{
		Users:    f.repo,
		Hasher:   f.hasher,
		Tokens:   f.tokens,
		Resets:   f.resets,
		Images:   f.images,
		Notifier: f.notifier,
		Recorder: f.recorder,
		Logger:   slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}, opts)
	require.NoError(t, err)
	return f
}

func (f *serviceFixture) signup(t *testing.T, name, email, password string) *auth.Session {
	t.Helper()
	sess, err := f.svc.Signup(f.ctx, auth.SignupInput{FullName: name, Email: email, Password: password})
	require.NoError(t, err)
	return sess
}

func TestNewCredentialService_NilDependencies(t *testing.T) {
	repo := memory.NewUserRepository()
	hasher := auth.NewArgon2idHasher()
	tokens, err := auth.NewTokenMinter(testSecret)
	require.NoError(t, err)
	resets, err := auth.NewResetTokenManager(repo)
	require.NoError(t, err)
	images := authtest.NewMockImageUploader(t)
	notifier := &captureNotifier{}

	full := auth.Deps{Users: repo, Hasher: hasher, Tokens: tokens, Resets: resets, Images: images, Notifier: notifier}

	tests := []struct {
		name        string
		mutate      func(*auth.Deps)
		expectError string
	}{
		{name: "nil users", mutate: func(d *auth.Deps) { d.Users = nil }, expectError: "users repository is required"},
		{name: "nil hasher", mutate: func(d *auth.Deps) { d.Hasher = nil }, expectError: "password hasher is required"},
		{name: "nil tokens", mutate: func(d *auth.Deps) { d.Tokens = nil }, expectError: "token minter is required"},
		{name: "nil resets", mutate: func(d *auth.Deps) { d.Resets = nil }, expectError: "reset token manager is required"},
		{name: "nil images", mutate: func(d *auth.Deps) { d.Images = nil }, expectError: "image uploader is required"},
		{name: "nil notifier", mutate: func(d *auth.Deps) { d.Notifier = nil }, expectError: "reset notifier is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full
			tt.mutate(&deps)
			svc, err := auth.NewCredentialService(deps, auth.Options{})
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}

	t.Run("optional dependencies may be nil", func(t *testing.T) {
		svc, err := auth.NewCredentialService(full, auth.Options{})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestCredentialService_Signup(t *testing.T) {
	t.Run("stores hash and opens session", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		sess := f.signup(t, "Ann", "ann@x.com", "secret1")

		profile := sess.User.Profile()
		assert.Equal(t, "Ann", profile.FullName)
		assert.Equal(t, "ann@x.com", profile.Email)
		assert.Empty(t, profile.ProfilePic)

		stored, err := f.repo.GetByEmail(f.ctx, "ann@x.com")
		require.NoError(t, err)
		assert.NotEqual(t, "secret1", stored.PasswordHash)
		ok, err := f.hasher.Verify("secret1", stored.PasswordHash)
		require.NoError(t, err)
		assert.True(t, ok)

		userID, err := f.tokens.Verify(sess.Token)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, userID)
		assert.Equal(t, f.now.Add(auth.SessionTokenExpiry), sess.ExpiresAt)
		assert.Equal(t, 1, f.recorder.get("signup/success"))
	})

	t.Run("profile JSON never carries secrets", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		sess := f.signup(t, "Ann", "ann@x.com", "secret1")

		raw, err := json.Marshal(sess.User.Profile())
		require.NoError(t, err)
		var fields map[string]any
		require.NoError(t, json.Unmarshal(raw, &fields))
		assert.ElementsMatch(t, []string{"_id", "fullName", "email", "profilePic", "createdAt"}, keys(fields))
	})

	validation := []struct {
		name     string
		in       auth.SignupInput
		wantCode string
	}{
		{name: "missing full name", in: auth.SignupInput{Email: "a@x.com", Password: "secret1"}, wantCode: "AUTH_FIELDS_REQUIRED"},
		{name: "missing email", in: auth.SignupInput{FullName: "A", Password: "secret1"}, wantCode: "AUTH_FIELDS_REQUIRED"},
		{name: "missing password", in: auth.SignupInput{FullName: "A", Email: "a@x.com"}, wantCode: "AUTH_FIELDS_REQUIRED"},
		{name: "five character password", in: auth.SignupInput{FullName: "A", Email: "a@x.com", Password: "12345"}, wantCode: "AUTH_PASSWORD_TOO_SHORT"},
	}
	for _, tt := range validation {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t, auth.Options{})
			_, err := f.svc.Signup(f.ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, auth.KindValidation, auth.KindOf(err))
			errutil.AssertErrorCode(t, err, tt.wantCode)
			assert.Equal(t, 1, f.recorder.get("signup/validation"))
		})
	}

	t.Run("six character password is accepted", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		f.signup(t, "A", "a@x.com", "123456")
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		f.signup(t, "Ann", "ann@x.com", "secret1")

		_, err := f.svc.Signup(f.ctx, auth.SignupInput{FullName: "Other", Email: "ann@x.com", Password: "secret2"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrConflict))
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_EXISTS")
	})
}

func TestCredentialService_SignupStoreErrors(t *testing.T) {
	ctx := context.Background()

	build := func(t *testing.T, repo auth.UserRepository) *auth.CredentialService {
		t.Helper()
		tokens, err := auth.NewTokenMinter(testSecret)
		require.NoError(t, err)
		resets, err := auth.NewResetTokenManager(repo)
		require.NoError(t, err)
		svc, err := auth.NewCredentialService(auth.Deps{
			Users:    repo,
			Hasher:   newFastHasher(t),
			Tokens:   tokens,
			Resets:   resets,
			Images:   authtest.NewMockImageUploader(t),
			Notifier: &captureNotifier{},
		}, auth.Options{})
		require.NoError(t, err)
		return svc
	}
	in := auth.SignupInput{FullName: "Ann", Email: "ann@x.com", Password: "secret1"}

	t.Run("unique violation on create is a conflict", func(t *testing.T) {
		repo := authtest.NewMockUserRepository(t)
		repo.On("GetByEmail", mock.Anything, "ann@x.com").Return(nil, auth.ErrNotFound)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).Return(auth.ErrConflict)

		_, err := build(t, repo).Signup(ctx, in)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_EXISTS")
	})

	t.Run("lookup failure is internal", func(t *testing.T) {
		repo := authtest.NewMockUserRepository(t)
		repo.On("GetByEmail", mock.Anything, "ann@x.com").Return(nil, errors.New("connection reset"))

		_, err := build(t, repo).Signup(ctx, in)
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
		errutil.AssertErrorCode(t, err, "SIGNUP_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "GetByEmail")
	})

	t.Run("create failure is internal", func(t *testing.T) {
		repo := authtest.NewMockUserRepository(t)
		repo.On("GetByEmail", mock.Anything, "ann@x.com").Return(nil, auth.ErrNotFound)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).Return(errors.New("disk full"))

		_, err := build(t, repo).Signup(ctx, in)
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
		errutil.AssertErrorContext(t, err, "operation", "Create")
	})
}

func TestCredentialService_Login(t *testing.T) {
	t.Run("empty fields fail as invalid credentials", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		_, err := f.svc.Login(f.ctx, auth.LoginInput{})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("correct password opens session", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		created := f.signup(t, "Ann", "ann@x.com", "secret1")

		sess, err := f.svc.Login(f.ctx, auth.LoginInput{Email: "ann@x.com", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, created.User.Profile(), sess.User.Profile())
		userID, err := f.tokens.Verify(sess.Token)
		require.NoError(t, err)
		assert.Equal(t, created.User.ID, userID)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		f.signup(t, "Ann", "ann@x.com", "secret1")

		_, wrongErr := f.svc.Login(f.ctx, auth.LoginInput{Email: "ann@x.com", Password: "wrong"})
		_, unknownErr := f.svc.Login(f.ctx, auth.LoginInput{Email: "bob@x.com", Password: "secret1"})

		for _, err := range []error{wrongErr, unknownErr} {
			require.Error(t, err)
			assert.Equal(t, auth.KindAuthentication, auth.KindOf(err))
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
		}
		assert.Equal(t, wrongErr.Error(), unknownErr.Error())
		assert.Equal(t, 2, f.recorder.get("login/authentication"))
	})

	t.Run("empty credentials are invalid credentials", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		_, err := f.svc.Login(f.ctx, auth.LoginInput{})
		assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
	})

	t.Run("legacy bcrypt hash is upgraded", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		legacy, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
		require.NoError(t, err)
		user, err := auth.NewUser("Old", "old@x.com", string(legacy), f.now)
		require.NoError(t, err)
		require.NoError(t, f.repo.Create(f.ctx, user))

		_, err = f.svc.Login(f.ctx, auth.LoginInput{Email: "old@x.com", Password: "secret1"})
		require.NoError(t, err)

		stored, err := f.repo.GetByID(f.ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
		ok, err := f.hasher.Verify("secret1", stored.PasswordHash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("corrupt stored hash is internal", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		user, err := auth.NewUser("Bad", "bad@x.com", "corrupt", f.now)
		require.NoError(t, err)
		require.NoError(t, f.repo.Create(f.ctx, user))

		_, err = f.svc.Login(f.ctx, auth.LoginInput{Email: "bad@x.com", Password: "secret1"})
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})

	t.Run("canceled context while waiting for a hash slot", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		ctx, cancel := context.WithCancel(f.ctx)
		cancel()

		_, err := f.svc.Login(ctx, auth.LoginInput{Email: "ann@x.com", Password: "secret1"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, context.Canceled))
	})
}

func TestCredentialService_Logout(t *testing.T) {
	f := newServiceFixture(t, auth.Options{})
	res := f.svc.Logout(f.ctx)
	assert.Equal(t, "Logged out successfully", res.Message)
	assert.Equal(t, 1, f.recorder.get("logout/success"))
}

func TestCredentialService_UpdateProfilePicture(t *testing.T) {
	t.Run("uploads and stores url", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		sess := f.signup(t, "Ann", "ann@x.com", "secret1")
		f.images.On("Upload", mock.Anything, "data:image/png;base64,AAA").
			Return("https://cdn.example.com/p.png", nil).Once()

		user, err := f.svc.UpdateProfilePicture(f.ctx, sess.User.ID, "data:image/png;base64,AAA")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/p.png", user.ProfilePic)

		stored, err := f.repo.GetByID(f.ctx, sess.User.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/p.png", stored.ProfilePic)
	})

	t.Run("missing image", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		_, err := f.svc.UpdateProfilePicture(f.ctx, ulid.Make(), "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "PROFILE_PIC_REQUIRED")
	})

	t.Run("uploader validation passes through", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		notImage := oops.Code("PROFILE_PIC_NOT_IMAGE").Public("Profile pic must be an image").Wrap(auth.ErrValidation)
		f.images.On("Upload", mock.Anything, "text").Return("", notImage).Once()

		_, err := f.svc.UpdateProfilePicture(f.ctx, ulid.Make(), "text")
		require.Error(t, err)
		assert.Equal(t, auth.KindValidation, auth.KindOf(err))
		errutil.AssertErrorCode(t, err, "PROFILE_PIC_NOT_IMAGE")
	})

	t.Run("upload failure is internal", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		f.images.On("Upload", mock.Anything, "img").Return("", errors.New("bucket unreachable")).Once()

		_, err := f.svc.UpdateProfilePicture(f.ctx, ulid.Make(), "img")
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
		errutil.AssertErrorCode(t, err, "PROFILE_UPDATE_FAILED")
	})

	t.Run("unknown user is internal", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		f.images.On("Upload", mock.Anything, "img").Return("https://cdn.example.com/p.png", nil).Once()

		_, err := f.svc.UpdateProfilePicture(f.ctx, ulid.Make(), "img")
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})
}

func TestCredentialService_CheckAndResolveSession(t *testing.T) {
	f := newServiceFixture(t, auth.Options{})
	sess := f.signup(t, "Ann", "ann@x.com", "secret1")

	t.Run("resolve valid token", func(t *testing.T) {
		user, err := f.svc.ResolveSession(f.ctx, sess.Token)
		require.NoError(t, err)
		assert.Equal(t, sess.User.ID, user.ID)

		checked, err := f.svc.CheckSession(f.ctx, user)
		require.NoError(t, err)
		assert.Same(t, user, checked)
	})

	t.Run("resolve garbage", func(t *testing.T) {
		_, err := f.svc.ResolveSession(f.ctx, "garbage")
		assert.Equal(t, auth.KindInvalidSession, auth.KindOf(err))
	})

	t.Run("resolve token of deleted user", func(t *testing.T) {
		token, _, err := f.tokens.Issue(ulid.Make())
		require.NoError(t, err)
		_, err = f.svc.ResolveSession(f.ctx, token)
		require.Error(t, err)
		assert.Equal(t, auth.KindInvalidSession, auth.KindOf(err))
		errutil.AssertErrorCode(t, err, "SESSION_USER_NOT_FOUND")
	})

	t.Run("check without user", func(t *testing.T) {
		_, err := f.svc.CheckSession(f.ctx, nil)
		assert.Equal(t, auth.KindInvalidSession, auth.KindOf(err))
	})
}

func TestCredentialService_ForgotPassword(t *testing.T) {
	t.Run("known and unknown emails look identical", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		f.signup(t, "Ann", "ann@x.com", "secret1")
		f.signup(t, "Bob", "bob@x.com", "secret1")
		before, err := f.repo.GetByEmail(f.ctx, "bob@x.com")
		require.NoError(t, err)

		known, err := f.svc.ForgotPassword(f.ctx, "ann@x.com")
		require.NoError(t, err)
		unknown, err := f.svc.ForgotPassword(f.ctx, "nonexistent@x.com")
		require.NoError(t, err)

		assert.Equal(t, known, unknown)
		assert.Equal(t, "If an account exists with this email, a password reset link has been sent.", known.Message)
		assert.Empty(t, known.ResetToken)
		assert.Empty(t, known.ResetURL)

		// Only the known account was touched.
		require.Len(t, f.notifier.sent(), 1)
		after, err := f.repo.GetByEmail(f.ctx, "bob@x.com")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("notice carries a working link", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{ResetURLBase: "https://chat.example.com/"})
		f.signup(t, "Ann", "ann@x.com", "secret1")

		_, err := f.svc.ForgotPassword(f.ctx, "ann@x.com")
		require.NoError(t, err)

		sent := f.notifier.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "ann@x.com", sent[0].To)
		assert.Equal(t, "Ann", sent[0].FullName)
		assert.Equal(t, f.now.Add(auth.ResetTokenExpiry), sent[0].ExpiresAt)
		require.True(t, strings.HasPrefix(sent[0].ResetURL, "https://chat.example.com/reset-password/"))

		token := strings.TrimPrefix(sent[0].ResetURL, "https://chat.example.com/reset-password/")
		_, err = f.resets.Validate(f.ctx, token)
		assert.NoError(t, err)
	})

	t.Run("debug echo exposes token and url", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{ExposeResetToken: true})
		f.signup(t, "Ann", "ann@x.com", "secret1")

		res, err := f.svc.ForgotPassword(f.ctx, "ann@x.com")
		require.NoError(t, err)
		assert.Len(t, res.ResetToken, 64)
		assert.Equal(t, "http://localhost:5173/reset-password/"+res.ResetToken, res.ResetURL)

		unknown, err := f.svc.ForgotPassword(f.ctx, "nobody@x.com")
		require.NoError(t, err)
		assert.Empty(t, unknown.ResetToken)
	})

	t.Run("delivery failure is logged not returned", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		f.notifier.err = errors.New("smtp down")
		f.signup(t, "Ann", "ann@x.com", "secret1")

		res, err := f.svc.ForgotPassword(f.ctx, "ann@x.com")
		require.NoError(t, err)
		assert.Equal(t, auth.MsgResetRequested, res.Message)
		assert.Contains(t, f.logs.String(), "password reset delivery failed")
		assert.Contains(t, f.logs.String(), "smtp down")
	})

	t.Run("the token is never logged", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{ExposeResetToken: true})
		f.signup(t, "Ann", "ann@x.com", "secret1")

		res, err := f.svc.ForgotPassword(f.ctx, "ann@x.com")
		require.NoError(t, err)
		assert.NotContains(t, f.logs.String(), res.ResetToken)
	})

	t.Run("missing email", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		_, err := f.svc.ForgotPassword(f.ctx, "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_EMAIL_REQUIRED")
	})
}

func TestCredentialService_ResetPassword(t *testing.T) {
	requestToken := func(t *testing.T, f *serviceFixture, email string) string {
		t.Helper()
		res, err := f.svc.ForgotPassword(f.ctx, email)
		require.NoError(t, err)
		require.NotEmpty(t, res.ResetToken)
		return res.ResetToken
	}

	t.Run("scenario: signup, forgot, reset, login", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{ExposeResetToken: true})
		created := f.signup(t, "Ann", "ann@x.com", "secret1")

		_, err := f.svc.Login(f.ctx, auth.LoginInput{Email: "ann@x.com", Password: "wrong"})
		require.True(t, errors.Is(err, auth.ErrInvalidCredentials))

		token := requestToken(t, f, "ann@x.com")
		res, err := f.svc.ResetPassword(f.ctx, token, "newpass1")
		require.NoError(t, err)
		assert.Equal(t, "Password reset successfully. You can now login with your new password.", res.Message)

		sess, err := f.svc.Login(f.ctx, auth.LoginInput{Email: "ann@x.com", Password: "newpass1"})
		require.NoError(t, err)
		assert.Equal(t, created.User.Profile(), sess.User.Profile())

		_, err = f.svc.Login(f.ctx, auth.LoginInput{Email: "ann@x.com", Password: "secret1"})
		assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))

		stored, err := f.repo.GetByID(f.ctx, created.User.ID)
		require.NoError(t, err)
		_, _, pending := stored.PendingReset()
		assert.False(t, pending)
	})

	t.Run("token is single use", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{ExposeResetToken: true})
		f.signup(t, "Ann", "ann@x.com", "secret1")
		token := requestToken(t, f, "ann@x.com")

		_, err := f.svc.ResetPassword(f.ctx, token, "newpass1")
		require.NoError(t, err)
		_, err = f.svc.ResetPassword(f.ctx, token, "newpass2")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")
	})

	t.Run("expired token", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{ExposeResetToken: true})
		f.signup(t, "Ann", "ann@x.com", "secret1")
		token := requestToken(t, f, "ann@x.com")

		f.now = f.now.Add(11 * time.Minute)
		_, err := f.svc.ResetPassword(f.ctx, token, "newpass1")
		require.Error(t, err)
		assert.Equal(t, auth.KindInvalidResetToken, auth.KindOf(err))
	})

	t.Run("password length boundary", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{ExposeResetToken: true})
		f.signup(t, "Ann", "ann@x.com", "secret1")
		token := requestToken(t, f, "ann@x.com")

		_, err := f.svc.ResetPassword(f.ctx, token, "12345")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_PASSWORD_TOO_SHORT")

		// The rejected attempt did not burn the token.
		_, err = f.svc.ResetPassword(f.ctx, token, "123456")
		require.NoError(t, err)
	})

	missing := []struct {
		name     string
		token    string
		password string
	}{
		{name: "missing token", password: "newpass1"},
		{name: "missing password", token: "abc"},
		{name: "both missing"},
	}
	for _, tt := range missing {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t, auth.Options{})
			_, err := f.svc.ResetPassword(f.ctx, tt.token, tt.password)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "RESET_FIELDS_REQUIRED")
		})
	}

	t.Run("unknown token", func(t *testing.T) {
		f := newServiceFixture(t, auth.Options{})
		_, err := f.svc.ResetPassword(f.ctx, strings.Repeat("a", 64), "newpass1")
		require.Error(t, err)
		assert.Equal(t, auth.KindInvalidResetToken, auth.KindOf(err))
		assert.Equal(t, 1, f.recorder.get("reset_password/invalid_reset_token"))
	})
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
