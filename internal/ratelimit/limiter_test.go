package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(opts ...Option) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewLimiter(opts...), clock
}

func TestAllowWithinLimit(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < DefaultMaxRequests; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "request %d should be allowed", i+1)
	}
	assert.False(t, l.Allow("1.2.3.4"), "request 101 should be rejected")
	assert.False(t, l.Allow("1.2.3.4"), "rejection holds for the rest of the window")
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(WithMaxRequests(2))

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestWindowReset(t *testing.T) {
	l, clock := newTestLimiter(WithMaxRequests(2), WithWindow(time.Minute))

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	clock.Advance(time.Minute + time.Second)

	assert.True(t, l.Allow("a"), "counter resets after the window elapses")
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestSweepPurgesStaleWindows(t *testing.T) {
	l, clock := newTestLimiter(
		WithWindow(time.Minute),
		WithCleanupInterval(5*time.Minute),
	)

	for i := 0; i < 50; i++ {
		l.Allow(fmt.Sprintf("id-%d", i))
	}
	assert.Equal(t, 50, l.Size())

	clock.Advance(10 * time.Minute)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Size(), "stale windows are purged by the sweep")
}

func TestSweepRunsAtMostOncePerInterval(t *testing.T) {
	l, clock := newTestLimiter(
		WithWindow(time.Minute),
		WithCleanupInterval(5*time.Minute),
	)

	l.Allow("old")
	clock.Advance(7 * time.Minute)
	l.Allow("trigger") // sweeps, purging "old"
	assert.Equal(t, 1, l.Size())

	// Within the same interval, no second sweep happens even though
	// "trigger" will itself go stale relative to a later check.
	clock.Advance(2 * time.Minute)
	l.Allow("another")
	assert.Equal(t, 2, l.Size())
}

func TestConcurrentBurstsDoNotUndercount(t *testing.T) {
	l, _ := newTestLimiter(WithMaxRequests(100))

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("same") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
}
