package websocket

import (
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestConnectionLimits_Global(t *testing.T) {
	limits := NewConnectionLimits(2, 0, 0, 0, nil)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	limits.Release("10.0.0.1")
	ok, _ = limits.Acquire("10.0.0.3")
	assert.True(t, ok)
	assert.Equal(t, int64(2), limits.Current())
}

func TestConnectionLimits_PerIP(t *testing.T) {
	limits := NewConnectionLimits(0, 2, 0, 0, nil)

	for range 2 {
		ok, _ := limits.Acquire("10.0.0.1")
		assert.True(t, ok)
	}

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)
	assert.Equal(t, int64(2), limits.Current(), "rejected per-ip acquire must roll back the global slot")

	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)

	limits.Release("10.0.0.1")
	limits.Release("10.0.0.1")
	assert.Equal(t, 0, limits.Count("10.0.0.1"))
}

func TestConnectionLimits_Rate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limits := NewConnectionLimits(0, 0, 1, 2, clock)

	for range 2 {
		ok, _ := limits.Acquire("10.0.0.1")
		assert.True(t, ok)
	}
	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)

	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok, "buckets are per ip")

	clock.Advance(time.Second)
	ok, _ = limits.Acquire("10.0.0.1")
	assert.True(t, ok)
}

func TestConnectionLimits_RateCleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limits := NewConnectionLimits(0, 0, 10, 10, clock)

	limits.Acquire("10.0.0.1")
	limits.Acquire("10.0.0.2")
	assert.Equal(t, 2, limits.activeLimiters())

	clock.Advance(limiterIdleTTL + limiterCleanupInterval)
	limits.Acquire("10.0.0.3")
	assert.Equal(t, 1, limits.activeLimiters())
}

func TestConnectionLimits_Concurrent(t *testing.T) {
	limits := NewConnectionLimits(100, 0, 0, 0, nil)
	var granted atomic.Int64

	start := make(chan struct{})
	var wg sync.WaitGroup
	for range 200 {
		wg.Go(func() {
			<-start
			if ok, _ := limits.Acquire("10.0.0.1"); ok {
				granted.Add(1)
			}
		})
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(100), granted.Load())
	assert.Equal(t, int64(100), limits.Current())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/app/key", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(req))
}
