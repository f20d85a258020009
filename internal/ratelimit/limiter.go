package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/spigell/candidate-vetter/internal/utils"
)

// Limiter is a per-key sliding-window limiter: at most Limit calls for a key
// in any Window. It starts no goroutines; idle keys are dropped by Sweep.
type Limiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// New returns a limiter. A non-positive limit disables limiting.
func New(limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
		wait:   utils.WaitFor,
	}
}

// Allow records a call for key and reports whether it fits in the window.
func (l *Limiter) Allow(key string) bool {
	return l.Reserve(key) == 0
}

// Reserve records a call for key when it fits and returns zero. Otherwise it
// records nothing and returns how long until a slot frees up.
func (l *Limiter) Reserve(key string) time.Duration {
	if l == nil || l.limit <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(key, now)

	if len(recent) < l.limit {
		l.hits[key] = append(recent, now)
		return 0
	}

	delay := recent[0].Add(l.window).Sub(now)
	if delay <= 0 {
		delay = time.Millisecond
	}
	return delay
}

// Wait blocks until key has a free slot or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		delay := l.Reserve(key)
		if delay == 0 {
			return nil
		}
		if err := l.wait(ctx, delay); err != nil {
			return err
		}
	}
}

// Remaining returns how many calls key may still make in the current window.
func (l *Limiter) Remaining(key string) int {
	if l == nil || l.limit <= 0 {
		return -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.limit - len(l.prune(key, l.now()))
}

// Sweep drops keys with no calls inside the window and returns how many were
// removed. The owner decides when to call it.
func (l *Limiter) Sweep() int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key := range l.hits {
		if len(l.prune(key, now)) == 0 {
			delete(l.hits, key)
			removed++
		}
	}
	return removed
}

// Keys returns the number of tracked keys.
func (l *Limiter) Keys() int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// prune must be called with mu held.
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	hits := l.hits[key]
	cutoff := now.Add(-l.window)

	idx := 0
	for idx < len(hits) && !hits[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		hits = append(hits[:0], hits[idx:]...)
		l.hits[key] = hits
	}
	return hits
}
