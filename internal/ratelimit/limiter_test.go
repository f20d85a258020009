package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := New(limit, window)
	l.now = clock.Now
	l.wait = func(_ context.Context, d time.Duration) error {
		clock.Advance(d)
		return nil
	}
	return l, clock
}

func TestSlidingWindowPerKey(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	assert.True(t, l.Allow("github"))
	assert.True(t, l.Allow("github"))
	assert.False(t, l.Allow("github"))
	assert.True(t, l.Allow("linkedin"), "keys are independent")

	clock.Advance(30 * time.Second)
	assert.Equal(t, 30*time.Second, l.Reserve("github"))

	clock.Advance(30 * time.Second)
	assert.True(t, l.Allow("github"), "oldest hit left the window")
	assert.Equal(t, 1, l.Remaining("github"))
}

func TestWaitAdvancesUntilSlot(t *testing.T) {
	l, clock := newTestLimiter(1, 10*time.Second)
	start := clock.Now()

	require.NoError(t, l.Wait(context.Background(), "github"))
	require.NoError(t, l.Wait(context.Background(), "github"))

	assert.Equal(t, 10*time.Second, clock.Now().Sub(start))
}

func TestWaitReturnsContextError(t *testing.T) {
	l := New(1, time.Hour)
	require.True(t, l.Allow("github"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx, "github")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweepEvictsIdleKeys(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	l.Allow("a")
	l.Allow("b")
	clock.Advance(45 * time.Second)
	l.Allow("b")

	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Keys())
	assert.Equal(t, 4, l.Remaining("b"))
}

func TestDisabledLimiter(t *testing.T) {
	t.Parallel()

	l := New(0, time.Second)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("any"))
	}
	assert.Equal(t, -1, l.Remaining("any"))

	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "any"))
	assert.Equal(t, 0, nilLimiter.Sweep())
}

func TestConcurrentAllow(t *testing.T) {
	t.Parallel()

	l := New(50, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
