// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/credgate/credgate/internal/auth"
	"github.com/credgate/credgate/pkg/errutil"
)

// Client-facing transport messages.
const (
	MsgInvalidBody     = "Invalid request body"
	MsgBodyTooLarge    = "Request body too large"
	MsgNoToken         = "Unauthorized - No Token Provided"
	MsgInvalidToken    = "Unauthorized - Invalid Token"
	MsgInternalError   = "Internal Server Error"
	msgInvalidRequest  = "Invalid request"
	msgUnauthenticated = "Unauthorized"
)

// errorBody is the only error shape clients see.
type errorBody struct {
	Message string `json:"message"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.Code("HTTP_ENCODE_FAILED").Wrap(err)
	}
	return nil
}

func writeMessage(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	if err := writeJSON(w, status, errorBody{Message: msg}); err != nil {
		logger.Debug("failed to write error response", "error", err)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation, auth.KindConflict, auth.KindAuthentication, auth.KindInvalidResetToken:
		return http.StatusBadRequest
	case auth.KindInvalidSession:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"message": ...}. Internal errors are logged
// and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := auth.KindOf(err)
	status := statusFor(kind)

	switch kind {
	case auth.KindInternal:
		errutil.LogErrorContext(r.Context(), logger, "request failed", err,
			"method", r.Method,
			"path", r.URL.Path)
		writeMessage(w, logger, status, MsgInternalError)
	case auth.KindInvalidSession:
		writeMessage(w, logger, status, oops.GetPublic(err, msgUnauthenticated))
	default:
		writeMessage(w, logger, status, oops.GetPublic(err, msgInvalidRequest))
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst zeroed so
// the service reports missing fields. It writes the error response itself
// and reports false when decoding failed.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeMessage(w, logger, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
		return false
	}

	logger.DebugContext(r.Context(), "malformed request body", "path", r.URL.Path, "error", err)
	writeMessage(w, logger, http.StatusBadRequest, MsgInvalidBody)
	return false
}
