package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestGlobalConnectionLimiter(t *testing.T) {
	l := NewGlobalConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire(), "third acquire exceeds capacity")

	l.Release()
	assert.True(t, l.Acquire())
	assert.Equal(t, int64(2), l.Current())
}

func TestIPConnectionLimiter(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	assert.True(t, l.Acquire("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.1"))
	assert.False(t, l.Acquire("10.0.0.1"), "per-IP limit reached")
	assert.True(t, l.Acquire("10.0.0.2"), "other IPs are unaffected")

	l.Release("10.0.0.1")
	assert.True(t, l.Acquire("10.0.0.1"))
	assert.Equal(t, 2, l.Count("10.0.0.1"))

	// Releasing an unknown IP is a no-op.
	l.Release("10.0.0.99")
	assert.Equal(t, 0, l.Count("10.0.0.99"))
}

func TestConnectionRateLimiter(t *testing.T) {
	l := NewConnectionRateLimiter(rate.Limit(1), 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per IP")
}
