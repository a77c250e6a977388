// Package ratelimit provides per-key sliding-window admission control for
// outbound requests to external services. State is process-local memory;
// limits are not shared across instances.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// maxPollSleep clamps the sleep between WaitForSlot polls so a long window
// does not make the caller unresponsive to context cancellation.
const maxPollSleep = 500 * time.Millisecond

// Limiter is a sliding-window rate limiter over named keys.
type Limiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	timestamps  map[string][]time.Time
	now         func() time.Time
}

// New creates a limiter allowing maxRequests per key within window.
func New(window time.Duration, maxRequests int) *Limiter {
	return &Limiter{
		window:      window,
		maxRequests: maxRequests,
		timestamps:  make(map[string][]time.Time),
		now:         time.Now,
	}
}

// CheckLimit reports whether a request for key is admitted right now.
// An admitted call records its own timestamp as a side effect.
func (l *Limiter) CheckLimit(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(key, now)

	if len(recent) >= l.maxRequests {
		l.timestamps[key] = recent
		return false
	}

	l.timestamps[key] = append(recent, now)
	return true
}

// WaitForSlot polls CheckLimit until a slot opens or maxWait elapses.
// The sleep between polls is derived from when the oldest in-window request
// expires, clamped to maxPollSleep. Returns false on timeout or context
// cancellation.
func (l *Limiter) WaitForSlot(ctx context.Context, key string, maxWait time.Duration) bool {
	deadline := l.now().Add(maxWait)

	for {
		if l.CheckLimit(key) {
			return true
		}

		now := l.now()
		if !now.Before(deadline) {
			return false
		}

		sleep := l.nextExpiry(key, now)
		if sleep <= 0 {
			sleep = time.Millisecond
		}
		if sleep > maxPollSleep {
			sleep = maxPollSleep
		}
		if remaining := deadline.Sub(now); sleep > remaining {
			sleep = remaining
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(sleep):
		}
	}
}

// prune drops timestamps older than the window. Caller must hold mu.
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	recent := l.timestamps[key][:0]
	for _, ts := range l.timestamps[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	return recent
}

// nextExpiry returns how long until the oldest in-window request for key
// ages out of the window.
func (l *Limiter) nextExpiry(key string, now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key, now)
	l.timestamps[key] = recent
	if len(recent) == 0 {
		return 0
	}
	return recent[0].Add(l.window).Sub(now)
}

// Registry maps external service names to their configured limiters.
// Each vendor gets its own window/threshold matching its published limit.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// Register adds a named limiter, replacing any existing one.
func (r *Registry) Register(service string, window time.Duration, maxRequests int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[service] = New(window, maxRequests)
}

// Get returns the limiter for service, or nil if none is registered.
func (r *Registry) Get(service string) *Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[service]
}

// DefaultRegistry returns a registry preconfigured for the external services
// the pipeline talks to. Thresholds are conservative versions of each
// vendor's published rate limit.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("hkex", time.Minute, 30)
	r.Register("szse", time.Minute, 20)
	r.Register("fmp", time.Minute, 60)
	r.Register("yahoo", time.Minute, 30)
	r.Register("finnhub", time.Minute, 30)
	return r
}
