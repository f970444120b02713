// Package testutil holds small helpers shared across test packages.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitTimeout  = 10 * time.Second
	pollInterval = 10 * time.Millisecond
)

// AssertEventually wraps assert.Eventually with the package-wide
// timeout and polling interval.
func AssertEventually(t *testing.T, condition func() bool, msgAndArgs ...interface{}) bool {
	t.Helper()
	return assert.Eventually(t, condition, waitTimeout, pollInterval, msgAndArgs...)
}

// RequireEventually wraps require.Eventually with the package-wide
// timeout and polling interval.
func RequireEventually(t *testing.T, condition func() bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.Eventually(t, condition, waitTimeout, pollInterval, msgAndArgs...)
}
