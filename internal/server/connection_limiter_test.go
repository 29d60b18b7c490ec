package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLimits_GlobalCap(t *testing.T) {
	limits := NewConnectionLimits(2, 10, 1000, 1000)

	ok, _ := limits.Acquire("1.1.1.1")
	require.True(t, ok)
	ok, _ = limits.Acquire("2.2.2.2")
	require.True(t, ok)

	ok, reason := limits.Acquire("3.3.3.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	limits.Release("1.1.1.1")
	ok, _ = limits.Acquire("3.3.3.3")
	assert.True(t, ok)
}

func TestConnectionLimits_PerIPCap(t *testing.T) {
	limits := NewConnectionLimits(100, 2, 1000, 1000)

	ok, _ := limits.Acquire("1.1.1.1")
	require.True(t, ok)
	ok, _ = limits.Acquire("1.1.1.1")
	require.True(t, ok)

	ok, reason := limits.Acquire("1.1.1.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	// The global slot taken before the per-IP check must be rolled back.
	assert.Equal(t, int64(2), limits.Current())

	// A different IP is unaffected.
	ok, _ = limits.Acquire("2.2.2.2")
	assert.True(t, ok)
}

func TestConnectionLimits_RateLimit(t *testing.T) {
	limits := NewConnectionLimits(100, 100, 1, 2)

	ok, _ := limits.Acquire("1.1.1.1")
	require.True(t, ok)
	ok, _ = limits.Acquire("1.1.1.1")
	require.True(t, ok)

	ok, reason := limits.Acquire("1.1.1.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}

func TestConnectionLimits_ReleaseUnknownIPIsSafe(t *testing.T) {
	limits := NewConnectionLimits(10, 10, 1000, 1000)

	ok, _ := limits.Acquire("1.1.1.1")
	require.True(t, ok)

	limits.Release("9.9.9.9")
	limits.Release("1.1.1.1")
}
