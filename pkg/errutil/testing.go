// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops fails the test unless err is a non-nil oops error.
func requireOops(t testing.TB, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err, "expected an oops error, got nil")
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err carries code. For wrapped errors the
// deepest code is the one compared.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code(), "error: %v", err)
}

// AssertErrorContext asserts that the context of err maps key to value.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	attrs := requireOops(t, err).Context()
	if assert.Contains(t, attrs, key) {
		assert.Equal(t, value, attrs[key])
	}
}

// AssertPublicMessage asserts the client-facing message of err.
func AssertPublicMessage(t testing.TB, err error, message string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, message, oops.GetPublic(err, ""))
}
