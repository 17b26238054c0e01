// Package ratelimit implements the per-identity sliding window used by
// the tracking endpoint. State is process-local; a restart resets abuse
// counters only, never correctness-critical state.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxRequests     = 100
	DefaultWindow          = 60 * time.Second
	DefaultCleanupInterval = 5 * time.Minute
)

type window struct {
	count int
	start time.Time
}

// Limiter counts requests per identity within a fixed window. All
// methods are safe for concurrent use; the counter update is a single
// read-modify-write under the mutex so concurrent bursts from one
// identity never undercount.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	maxRequests     int
	window          time.Duration
	cleanupInterval time.Duration

	lastSweep time.Time
	now       func() time.Time
}

type Option func(*Limiter)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithMaxRequests(n int) Option {
	return func(l *Limiter) { l.maxRequests = n }
}

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

func WithCleanupInterval(d time.Duration) Option {
	return func(l *Limiter) { l.cleanupInterval = d }
}

func NewLimiter(opts ...Option) *Limiter {
	l := &Limiter{
		windows:         make(map[string]*window),
		maxRequests:     DefaultMaxRequests,
		window:          DefaultWindow,
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow reports whether a request from identity is within the limit.
// The first request of a window is always allowed; once the count
// exceeds the limit, further requests are rejected until the window
// elapses and the counter resets.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)

	w, ok := l.windows[identity]
	if !ok || now.Sub(w.start) > l.window {
		l.windows[identity] = &window{count: 1, start: now}
		return true
	}

	w.count++
	return w.count <= l.maxRequests
}

// maybeSweep purges windows stale past any chance of reuse. Runs at
// most once per cleanup interval, whatever the outcome of the check
// that triggered it. Caller holds the mutex.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.cleanupInterval {
		return
	}
	l.lastSweep = now

	stale := l.window + l.cleanupInterval
	for id, w := range l.windows {
		if now.Sub(w.start) > stale {
			delete(l.windows, id)
		}
	}
}

// Size reports the number of tracked identities.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
