package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiter_EvictsIdleIPs(t *testing.T) {
	now := time.Date(2025, 8, 14, 9, 0, 0, 0, time.UTC)
	l := newRateLimiter(2, zap.NewNop())
	l.now = func() time.Time { return now }

	first := l.get("10.0.0.1")
	assert.True(t, first.Allow())
	assert.True(t, first.Allow())
	assert.False(t, first.Allow())
	l.get("10.0.0.2")
	assert.Len(t, l.limiters, 2)

	// still active: same bucket comes back
	now = now.Add(time.Minute)
	assert.Same(t, first, l.get("10.0.0.1"))

	now = now.Add(limiterIdle)
	l.get("10.0.0.3")
	assert.Len(t, l.limiters, 1)
	assert.Contains(t, l.limiters, "10.0.0.3")
}
