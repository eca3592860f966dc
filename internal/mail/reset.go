// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package mail

import (
	"bytes"
	"context"
	"embed"
	htmltemplate "html/template"
	"math"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/samber/oops"

	"github.com/credgate/credgate/internal/auth"
)

// ResetSubject is the subject line of password reset emails.
const ResetSubject = "Reset your password"

//go:embed templates/*.tmpl
var templatesFS embed.FS

var (
	resetText = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/reset.txt.tmpl"))
	resetHTML = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/reset.html.tmpl"))
)

type resetData struct {
	Name    string
	Product string
	URL     string
	Minutes int
}

// ResetMailer renders password reset emails and hands them to a Sender.
type ResetMailer struct {
	sender  Sender
	product string
	now     func() time.Time
}

// ResetMailerOption configures a ResetMailer.
type ResetMailerOption func(*ResetMailer)

// WithProduct sets the product name shown in the email.
func WithProduct(name string) ResetMailerOption {
	return func(m *ResetMailer) { m.product = name }
}

// WithMailerClock sets the clock used to state the remaining lifetime.
func WithMailerClock(now func() time.Time) ResetMailerOption {
	return func(m *ResetMailer) { m.now = now }
}

// NewResetMailer creates a ResetMailer.
func NewResetMailer(sender Sender, opts ...ResetMailerOption) (*ResetMailer, error) {
	if sender == nil {
		return nil, oops.Errorf("mail sender is required")
	}
	m := &ResetMailer{sender: sender, product: "Credgate", now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SendPasswordReset renders the reset link for notice and sends it.
func (m *ResetMailer) SendPasswordReset(ctx context.Context, notice auth.ResetNotice) error {
	msg, err := m.Render(notice)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("operation", "send reset email").Wrap(err)
	}
	return nil
}

// Render builds the reset message without sending it.
func (m *ResetMailer) Render(notice auth.ResetNotice) (Message, error) {
	data := resetData{
		Name:    strings.TrimSpace(notice.FullName),
		Product: m.product,
		URL:     notice.ResetURL,
		Minutes: minutesLeft(notice.ExpiresAt, m.now()),
	}
	if data.Name == "" {
		data.Name = "there"
	}

	var text, html bytes.Buffer
	if err := resetText.Execute(&text, data); err != nil {
		return Message{}, oops.Code("MAIL_RENDER_FAILED").With("format", "text").Wrap(err)
	}
	if err := resetHTML.Execute(&html, data); err != nil {
		return Message{}, oops.Code("MAIL_RENDER_FAILED").With("format", "html").Wrap(err)
	}

	return Message{
		To:      notice.To,
		Subject: ResetSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// minutesLeft rounds up so a fresh ten minute token reads "10 minutes".
func minutesLeft(expiresAt, now time.Time) int {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Minutes()))
}

// Compile-time interface check.
var _ auth.ResetNotifier = (*ResetMailer)(nil)
