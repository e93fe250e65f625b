// Package ratelimit implements a generic keyed sliding-window counter shared
// by the login flow, MFA verification, outbound email, and the secure data
// wrapper. The limiter is explicitly constructed and injected so it can later
// be backed by a shared cache; as built it is process-local and is a soft
// backstop, not a hard security boundary across instances.
package ratelimit

import (
	"sync"
	"time"
)

// Scope names one rate-limited concern with its own (max, window) pair.
// Keys from distinct scopes never collide.
type Scope struct {
	Name   string
	Max    int
	Window time.Duration
}

type window struct {
	count int
	start time.Time
}

// Limiter counts events per key inside fixed windows. Updates to a given key
// are serialized behind a single mutex; contention is negligible at the call
// rates this guards.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		windows: make(map[string]window),
		now:     time.Now,
	}
}

// NewWithClock builds a limiter with an injected clock, for tests.
func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{
		windows: make(map[string]window),
		now:     now,
	}
}

// Allow records one event for key and reports whether it fits inside the
// window. A fresh or elapsed window restarts with count=1 and allows; an
// exhausted window rejects without extending itself.
func (l *Limiter) Allow(key string, max int, windowDur time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= windowDur {
		l.windows[key] = window{count: 1, start: now}
		return true
	}

	if w.count < max {
		w.count++
		l.windows[key] = w
		return true
	}

	return false
}

// AllowScope applies a named scope's limits to key.
func (l *Limiter) AllowScope(s Scope, key string) bool {
	return l.Allow(s.Name+":"+key, s.Max, s.Window)
}

// Reset drops the window for key, if any.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// ResetScope drops the window for key within a scope.
func (l *Limiter) ResetScope(s Scope, key string) {
	l.Reset(s.Name + ":" + key)
}

// PruneStale removes windows whose start is older than maxAge and returns how
// many were dropped. Correctness never depends on pruning; this is hygiene
// run by the background sweeper.
func (l *Limiter) PruneStale(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	pruned := 0
	for key, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, key)
			pruned++
		}
	}
	return pruned
}
