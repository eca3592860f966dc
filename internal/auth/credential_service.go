// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/credgate/credgate/pkg/errutil"
)

// Client-facing confirmation messages.
const (
	MsgLoggedOut      = "Logged out successfully"
	MsgResetRequested = "If an account exists with this email, a password reset link has been sent."
	MsgPasswordReset  = "Password reset successfully. You can now login with your new password."
)

// DefaultResetURLBase is the frontend origin reset links point at.
const DefaultResetURLBase = "http://localhost:5173"

// DefaultMaxConcurrentHashes bounds simultaneous password hash computations.
const DefaultMaxConcurrentHashes = 4

var (
	errFieldsRequired      = validationError("AUTH_FIELDS_REQUIRED", "All fields are required")
	errProfilePicRequired  = validationError("PROFILE_PIC_REQUIRED", "Profile pic is required")
	errEmailRequired       = validationError("RESET_EMAIL_REQUIRED", "Email is required")
	errResetFieldsRequired = validationError("RESET_FIELDS_REQUIRED", "Token and password are required")

	errEmailExists = oops.Code("AUTH_EMAIL_EXISTS").
			Public("Email already exists").
			Wrap(ErrConflict)

	errInvalidCredentials = oops.Code("AUTH_INVALID_CREDENTIALS").
				Public("Invalid credentials").
				Wrap(ErrInvalidCredentials)
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ImageUploader stores an image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, imageData string) (string, error)
}

// ResetNotice is what a user needs to complete a password reset.
type ResetNotice struct {
	To        string
	FullName  string
	ResetURL  string
	ExpiresAt time.Time
}

// ResetNotifier delivers reset links out of band.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, notice ResetNotice) error
}

// Recorder counts operation outcomes.
type Recorder interface {
	RecordAuthOperation(operation, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthOperation(string, string) {}

// Deps are the collaborators of a CredentialService.
type Deps struct {
	Users    UserRepository
	Hasher   PasswordHasher
	Tokens   *TokenMinter
	Resets   *ResetTokenManager
	Images   ImageUploader
	Notifier ResetNotifier

	// Optional.
	Recorder Recorder
	Logger   *slog.Logger
}

// Options tune a CredentialService.
type Options struct {
	// ResetURLBase is the frontend origin; links are <base>/reset-password/<token>.
	ResetURLBase string

	// ExposeResetToken echoes the reset token and link in ForgotPassword
	// results. Debug only: it defeats out-of-band delivery.
	ExposeResetToken bool

	// MaxConcurrentHashes bounds simultaneous hash and verify calls.
	MaxConcurrentHashes int

	// DummyHash is verified when a login names an unknown email. It should
	// be produced by the configured hasher so both paths cost the same.
	DummyHash string

	// Now overrides the clock.
	Now func() time.Time
}

// SignupInput is the signup request.
type SignupInput struct {
	FullName string `validate:"required"`
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// LoginInput is the login request. It carries no required rules: missing
// fields fail as invalid credentials, like any other mismatch.
type LoginInput struct {
	Email    string
	Password string
}

type forgotPasswordInput struct {
	Email string `validate:"required"`
}

type resetPasswordInput struct {
	Token    string `validate:"required"`
	Password string `validate:"required"`
}

// Session is an authenticated user with a freshly issued session token.
type Session struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// ForgotPasswordResult is the acknowledgement returned by ForgotPassword.
// ResetToken and ResetURL are only set when Options.ExposeResetToken is on.
type ForgotPasswordResult struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken,omitempty"`
	ResetURL   string `json:"resetUrl,omitempty"`
}

// MessageResult is a confirmation with no payload.
type MessageResult struct {
	Message string `json:"message"`
}

// CredentialService runs the signup, login and password reset use cases.
type CredentialService struct {
	users    UserRepository
	hasher   PasswordHasher
	tokens   *TokenMinter
	resets   *ResetTokenManager
	images   ImageUploader
	notifier ResetNotifier
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	validate *validator.Validate

	hashSlots    *semaphore.Weighted
	resetURLBase string
	exposeToken  bool
	dummyHash    string
	now          func() time.Time
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(deps Deps, opts Options) (*CredentialService, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Errorf("users repository is required")
	case deps.Hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case deps.Tokens == nil:
		return nil, oops.Errorf("token minter is required")
	case deps.Resets == nil:
		return nil, oops.Errorf("reset token manager is required")
	case deps.Images == nil:
		return nil, oops.Errorf("image uploader is required")
	case deps.Notifier == nil:
		return nil, oops.Errorf("reset notifier is required")
	}

	base := opts.ResetURLBase
	if base == "" {
		base = DefaultResetURLBase
	}
	if _, err := url.Parse(base); err != nil {
		return nil, oops.Code("AUTH_INVALID_OPTIONS").With("reset_url_base", base).Wrap(err)
	}

	slots := opts.MaxConcurrentHashes
	if slots <= 0 {
		slots = DefaultMaxConcurrentHashes
	}

	s := &CredentialService{
		users:        deps.Users,
		hasher:       deps.Hasher,
		tokens:       deps.Tokens,
		resets:       deps.Resets,
		images:       deps.Images,
		notifier:     deps.Notifier,
		recorder:     deps.Recorder,
		logger:       deps.Logger,
		tracer:       otel.Tracer("github.com/credgate/credgate/internal/auth"),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		hashSlots:    semaphore.NewWeighted(int64(slots)),
		resetURLBase: base,
		exposeToken:  opts.ExposeResetToken,
		dummyHash:    opts.DummyHash,
		now:          opts.Now,
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.dummyHash == "" {
		s.dummyHash = dummyPasswordHash
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Signup registers a user and opens a session for them.
func (s *CredentialService) Signup(ctx context.Context, in SignupInput) (_ *Session, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Signup")
	defer func() { s.finish(span, "signup", err) }()

	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, errFieldsRequired
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	// Pre-check keeps the common duplicate case away from the hasher.
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, errEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	var hash string
	err = s.withHashSlot(ctx, func() (hashErr error) {
		hash, hashErr = s.hasher.Hash(in.Password)
		return hashErr
	})
	if err != nil {
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "Hash").Wrap(err)
	}

	user, err := NewUser(in.FullName, in.Email, hash, s.now())
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "Issue").Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, errEmailExists
		}
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "Create").Wrap(err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID.String())
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Login checks credentials and opens a session.
// Unknown emails and wrong passwords fail the same way and take the same time.
func (s *CredentialService) Login(ctx context.Context, in LoginInput) (_ *Session, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer func() { s.finish(span, "login", err) }()

	user, lookupErr := s.users.GetByEmail(ctx, in.Email)

	targetHash := s.dummyHash
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("LOGIN_FAILED").With("operation", "GetByEmail").Wrap(lookupErr)
	}

	// Always verify password (constant-time operation for timing attack prevention)
	var valid bool
	verifyErr := s.withHashSlot(ctx, func() (hashErr error) {
		valid, hashErr = s.hasher.Verify(in.Password, targetHash)
		return hashErr
	})
	if verifyErr != nil {
		if !userExists {
			return nil, errInvalidCredentials
		}
		return nil, oops.Code("LOGIN_FAILED").
			With("operation", "Verify").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		return nil, errInvalidCredentials
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, in.Password)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "Issue").Wrap(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// upgradeHash rehashes password with the current parameters. Failures are
// logged; login succeeds regardless.
func (s *CredentialService) upgradeHash(ctx context.Context, user *User, password string) {
	var newHash string
	err := s.withHashSlot(ctx, func() (hashErr error) {
		newHash, hashErr = s.hasher.Hash(password)
		return hashErr
	})
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, newHash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			"user_id", user.ID.String(),
			"error", err)
		return
	}
	user.PasswordHash = newHash
}

// Logout acknowledges a logout. The session token is stateless, so the
// transport only has to clear the cookie.
func (s *CredentialService) Logout(ctx context.Context) MessageResult {
	_, span := s.tracer.Start(ctx, "auth.Logout")
	s.finish(span, "logout", nil)
	return MessageResult{Message: MsgLoggedOut}
}

// UpdateProfilePicture uploads imageData and stores its URL on the user.
func (s *CredentialService) UpdateProfilePicture(ctx context.Context, userID ulid.ULID, imageData string) (_ *User, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.UpdateProfilePicture",
		trace.WithAttributes(attribute.String("user_id", userID.String())))
	defer func() { s.finish(span, "update_profile", err) }()

	if imageData == "" {
		return nil, errProfilePicRequired
	}

	picURL, err := s.images.Upload(ctx, imageData)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, oops.Code("PROFILE_UPDATE_FAILED").With("operation", "Upload").Wrap(err)
	}

	if err := s.users.UpdateProfilePic(ctx, userID, picURL); err != nil {
		return nil, oops.Code("PROFILE_UPDATE_FAILED").
			With("operation", "UpdateProfilePic").
			With("user_id", userID.String()).
			Wrap(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, oops.Code("PROFILE_UPDATE_FAILED").
			With("operation", "GetByID").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, nil
}

// CheckSession returns the user the session middleware already resolved.
func (s *CredentialService) CheckSession(ctx context.Context, user *User) (*User, error) {
	_, span := s.tracer.Start(ctx, "auth.CheckSession")
	if user == nil {
		err := oops.Code("SESSION_MISSING").Wrap(ErrInvalidSession)
		s.finish(span, "check", err)
		return nil, err
	}
	s.finish(span, "check", nil)
	return user, nil
}

// ResolveSession verifies a session token and loads its user.
func (s *CredentialService) ResolveSession(ctx context.Context, token string) (_ *User, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.ResolveSession")
	defer func() { s.finish(span, "resolve_session", err) }()

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_USER_NOT_FOUND").
				With("user_id", userID.String()).
				Wrap(ErrInvalidSession)
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "GetByID").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, nil
}

// ForgotPassword starts a password reset for email. The result is the same
// whether or not the email belongs to an account.
func (s *CredentialService) ForgotPassword(ctx context.Context, email string) (_ *ForgotPasswordResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.ForgotPassword")
	defer func() { s.finish(span, "forgot_password", err) }()

	if err := s.validate.StructCtx(ctx, forgotPasswordInput{Email: email}); err != nil {
		return nil, errEmailRequired
	}

	result := &ForgotPasswordResult{Message: MsgResetRequested}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "password reset requested for unknown email", "email", email)
			return result, nil
		}
		return nil, oops.Code("RESET_REQUEST_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	token, err := s.resets.Generate(ctx, user)
	if err != nil {
		return nil, oops.Code("RESET_REQUEST_FAILED").With("operation", "Generate").Wrap(err)
	}

	resetURL, err := url.JoinPath(s.resetURLBase, "reset-password", token)
	if err != nil {
		return nil, oops.Code("RESET_REQUEST_FAILED").With("operation", "JoinPath").Wrap(err)
	}

	_, expiresAt, _ := user.PendingReset()
	notice := ResetNotice{To: user.Email, FullName: user.FullName, ResetURL: resetURL, ExpiresAt: expiresAt}
	if err := s.notifier.SendPasswordReset(ctx, notice); err != nil {
		// Delivery failure must not change the response.
		errutil.LogErrorContext(ctx, s.logger, "password reset delivery failed", err,
			"user_id", user.ID.String())
	}

	if s.exposeToken {
		result.ResetToken = token
		result.ResetURL = resetURL
	}
	return result, nil
}

// ResetPassword redeems a reset token and sets a new password.
func (s *CredentialService) ResetPassword(ctx context.Context, token, password string) (_ *MessageResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.ResetPassword")
	defer func() { s.finish(span, "reset_password", err) }()

	if err := s.validate.StructCtx(ctx, resetPasswordInput{Token: token, Password: password}); err != nil {
		return nil, errResetFieldsRequired
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	// Reject unknown tokens before paying for a hash.
	if _, err := s.resets.Validate(ctx, token); err != nil {
		return nil, err
	}

	var hash string
	err = s.withHashSlot(ctx, func() (hashErr error) {
		hash, hashErr = s.hasher.Hash(password)
		return hashErr
	})
	if err != nil {
		return nil, oops.Code("RESET_PASSWORD_FAILED").With("operation", "Hash").Wrap(err)
	}

	user, err := s.resets.VerifyAndConsume(ctx, token, hash)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID.String())
	return &MessageResult{Message: MsgPasswordReset}, nil
}

// withHashSlot runs fn while holding one hashing slot.
func (s *CredentialService) withHashSlot(ctx context.Context, fn func() error) error {
	if err := s.hashSlots.Acquire(ctx, 1); err != nil {
		return oops.Code("AUTH_HASH_CANCELED").Wrap(err)
	}
	defer s.hashSlots.Release(1)
	return fn()
}

// finish ends span and records the operation's outcome.
func (s *CredentialService) finish(span trace.Span, operation string, err error) {
	result := "success"
	if err != nil {
		kind := KindOf(err)
		result = kind.String()
		span.SetAttributes(attribute.String("auth.error_kind", result))
		if kind == KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, "internal error")
		}
	}
	s.recorder.RecordAuthOperation(operation, result)
	span.End()
}
