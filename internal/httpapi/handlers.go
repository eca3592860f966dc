// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/credgate/credgate/internal/auth"
)

// CredentialService is the subset of auth.CredentialService the routes call.
type CredentialService interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.Session, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
	Logout(ctx context.Context) auth.MessageResult
	UpdateProfilePicture(ctx context.Context, userID ulid.ULID, imageData string) (*auth.User, error)
	CheckSession(ctx context.Context, user *auth.User) (*auth.User, error)
	ResolveSession(ctx context.Context, token string) (*auth.User, error)
	ForgotPassword(ctx context.Context, email string) (*auth.ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, token, password string) (*auth.MessageResult, error)
}

// Handler serves the authentication routes.
type Handler struct {
	service CredentialService
	cookies auth.CookiePolicy
	logger  *slog.Logger
}

// NewHandler creates a Handler. A nil logger means slog.Default().
func NewHandler(service CredentialService, cookies auth.CookiePolicy, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, cookies: cookies, logger: logger}
}

// MountRoutes registers the authentication routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Post("/forgot-password", h.forgotPassword)
	r.Post("/reset-password", h.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Put("/update-profile", h.updateProfile)
		r.Get("/check", h.check)
	})
}

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	session, err := h.service.Signup(r.Context(), auth.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, h.cookies.SessionCookie(session.Token))
	h.respond(w, r, http.StatusCreated, session.User.Profile())
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), auth.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, h.cookies.SessionCookie(session.Token))
	h.respond(w, r, http.StatusOK, session.User.Profile())
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	result := h.service.Logout(r.Context())
	http.SetCookie(w, h.cookies.ClearedSessionCookie())
	h.respond(w, r, http.StatusOK, result)
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	result, err := h.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, http.StatusOK, result)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	result, err := h.service.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, http.StatusOK, result)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req updateProfileRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	updated, err := h.service.UpdateProfilePicture(r.Context(), user.ID, req.ProfilePic)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, http.StatusOK, updated.Profile())
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	current, err := h.service.CheckSession(r.Context(), user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, r, http.StatusOK, current.Profile())
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		h.logger.DebugContext(r.Context(), "failed to write response", "path", r.URL.Path, "error", err)
	}
}
