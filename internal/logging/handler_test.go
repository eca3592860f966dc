// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/credgate/credgate/pkg/errutil"
)

func setupJSON(t *testing.T, level string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "credgate", Version: "1.0.0", Format: "json", Level: level, Writer: &buf})
	require.NoError(t, err)
	return logger, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "invalid JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	logger, buf := setupJSON(t, "")
	logger.Info("test message")

	entry := decode(t, buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "credgate", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "credgate", Format: "text", Writer: &buf})
	require.NoError(t, err)

	logger.Info("test message")
	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "service=credgate")
}

func TestSetup_RejectsBadOptions(t *testing.T) {
	_, err := Setup(Options{Format: "xml"})
	errutil.AssertErrorCode(t, err, "LOG_CONFIG_INVALID")

	_, err = Setup(Options{Level: "chatty"})
	errutil.AssertErrorCode(t, err, "LOG_CONFIG_INVALID")
}

func TestSetup_Level(t *testing.T) {
	logger, buf := setupJSON(t, "warn")

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, buf)["msg"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestHandler_TraceContext(t *testing.T) {
	logger, buf := setupJSON(t, "")

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	logger, buf := setupJSON(t, "")
	logger.Info("no trace message")

	entry := decode(t, buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_RedactsSecrets(t *testing.T) {
	logger, buf := setupJSON(t, "")
	logger.With("jwt", "eyJhbGciOi").Info("login",
		"password", "hunter22",
		"reset_token", "abc123",
		"email", "ann@x.io")

	entry := decode(t, buf)
	assert.Equal(t, Redacted, entry["password"])
	assert.Equal(t, Redacted, entry["reset_token"])
	assert.Equal(t, Redacted, entry["jwt"])
	assert.Equal(t, "ann@x.io", entry["email"])
	assert.NotContains(t, buf.String(), "hunter22")
}

func TestHandler_WithGroup(t *testing.T) {
	logger, buf := setupJSON(t, "")
	logger.WithGroup("req").Info("grouped", "path", "/api/auth/login")

	entry := decode(t, buf)
	group, ok := entry["req"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/api/auth/login", group["path"])
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logger, err := SetDefault(Options{Service: "credgate", Version: "2.0.0"})
	require.NoError(t, err)
	assert.Same(t, logger, slog.Default())
}
