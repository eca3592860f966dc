// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

// Package httpapi exposes the credential operations over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/credgate/credgate/internal/auth"
)

// MaxBodyBytes bounds request bodies. Profile pictures arrive inline as
// base64 data URLs.
const MaxBodyBytes = 10 << 20

// Route prefixes. Both serve the same handlers.
const (
	APIPrefix   = "/api/auth"
	AliasPrefix = "/auth"
)

// UploadsPath serves locally stored profile pictures.
const UploadsPath = "/uploads"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Service CredentialService
	Cookies auth.CookiePolicy
	Logger  *slog.Logger

	// Optional.
	Metrics       RequestRecorder
	AllowedOrigin string
	Production    bool
	// Uploads, when set, is served under UploadsPath.
	Uploads http.FileSystem
}

// NewRouter builds the chi router with the credgate middleware stack.
func NewRouter(params RouterParams) (http.Handler, error) {
	if params.Service == nil {
		return nil, oops.Errorf("credential service is required")
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	if params.Metrics != nil {
		r.Use(requestMetrics(params.Metrics))
	}
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(params.Production))
	if params.AllowedOrigin != "" {
		r.Use(corsPolicy(params.AllowedOrigin))
	}
	r.Use(middleware.RequestSize(MaxBodyBytes))

	h := NewHandler(params.Service, params.Cookies, logger)
	r.Route(APIPrefix, h.MountRoutes)
	r.Route(AliasPrefix, h.MountRoutes)

	if params.Uploads != nil {
		r.Handle(UploadsPath+"/*", http.StripPrefix(UploadsPath+"/", http.FileServer(params.Uploads)))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, logger, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, logger, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})
	return r, nil
}

func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
