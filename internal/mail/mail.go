// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

// Package mail renders and delivers account emails.
package mail

import (
	"context"
	"log/slog"
	"net/mail"

	"github.com/samber/oops"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. It is the
// delivery path until a real transport is configured.
//
// Bodies carry single-use links, so only the recipient and subject are
// logged unless WithBodyLogging is set.
type LogSender struct {
	logger  *slog.Logger
	logBody bool
}

// LogSenderOption configures a LogSender.
type LogSenderOption func(*LogSender)

// WithBodyLogging includes the text body in the log entry. Debug only.
func WithBodyLogging(enabled bool) LogSenderOption {
	return func(s *LogSender) { s.logBody = enabled }
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger, opts ...LogSenderOption) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LogSender{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send logs the recipient and subject, plus the text body when enabled.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return oops.Code("MAIL_INVALID_RECIPIENT").With("operation", "parse recipient").Wrap(err)
	}
	attrs := []any{
		"delivery", "stub",
		"to", msg.To,
		"subject", msg.Subject,
	}
	if s.logBody {
		attrs = append(attrs, "text", msg.Text)
	}
	s.logger.InfoContext(ctx, "email delivered", attrs...)
	return nil
}

// Compile-time interface check.
var _ Sender = (*LogSender)(nil)
