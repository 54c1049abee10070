package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the limiter deterministically: sleeps advance virtual
// time instead of blocking.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) totalSlept() time.Duration {
	var total time.Duration
	for _, d := range c.slept {
		total += d
	}
	return total
}

func newTestLimiter(callsPerMinute int) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := New(callsPerMinute)
	l.lastRefill = clock.now
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestNew(t *testing.T) {
	l := New(60)

	assert.Equal(t, 60, l.callsPerMinute)
	assert.Equal(t, 10.0, l.tokens, "initial tokens capped at 10")
	assert.Equal(t, 1.0, l.refillRate, "60/min refills one token per second")
	assert.Equal(t, 55, l.budgetMaxCalls, "92 percent of 60 rounds down to 55")
	assert.Equal(t, 60*time.Second, l.budgetWindow)
}

func TestNewSmallQuota(t *testing.T) {
	l := New(30)
	assert.Equal(t, 5.0, l.tokens, "30/6 = 5 initial tokens")
	assert.Equal(t, 27, l.budgetMaxCalls)

	l = New(1)
	assert.Equal(t, 0.0, l.tokens)
	assert.Equal(t, 1, l.budgetMaxCalls, "budget never drops below one call")
}

func TestAcquireSpendsInitialTokensWithoutWaiting(t *testing.T) {
	l, clock := newTestLimiter(60)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Acquire(ctx))
	}

	assert.Empty(t, clock.slept, "first 10 calls ride on the initial tokens")
	assert.Len(t, l.callTimes, 10)
}

func TestAcquireWaitsWhenBucketEmpty(t *testing.T) {
	l, clock := newTestLimiter(60)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	require.NoError(t, l.Acquire(ctx))

	require.Len(t, clock.slept, 1)
	assert.Equal(t, time.Second, clock.slept[0], "one token deficit at 1 token/s costs 1s")
}

func TestAcquireElapsedLowerBound(t *testing.T) {
	l, clock := newTestLimiter(60)
	ctx := context.Background()
	start := clock.now

	const calls = 30
	for i := 0; i < calls; i++ {
		require.NoError(t, l.Acquire(ctx))
	}

	// (calls - initialTokens) / refillRate = (30-10)/1 = 20s minimum
	elapsed := clock.now.Sub(start)
	assert.GreaterOrEqual(t, elapsed, 20*time.Second,
		"bucket must stretch 30 calls over at least 20s")
}

func TestAcquireRollingWindowBudget(t *testing.T) {
	l, clock := newTestLimiter(60)
	ctx := context.Background()

	for i := 0; i < 70; i++ {
		require.NoError(t, l.Acquire(ctx))

		inWindow := 0
		for _, ts := range l.callTimes {
			if clock.now.Sub(ts) < l.budgetWindow {
				inWindow++
			}
		}
		require.LessOrEqual(t, inWindow, l.budgetMaxCalls,
			"call %d: trailing 60s window exceeded the budget", i+1)
	}
}

func TestAcquireRefillCapped(t *testing.T) {
	l, clock := newTestLimiter(60)
	ctx := context.Background()

	// A long idle period must not bank more than one minute of quota.
	clock.now = clock.now.Add(10 * time.Minute)
	require.NoError(t, l.Acquire(ctx))

	assert.Equal(t, 59.0, l.tokens, "refill caps at callsPerMinute before consuming")
}

func TestReset(t *testing.T) {
	l, clock := newTestLimiter(60)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	require.Equal(t, 0.0, l.tokens)

	l.Reset()
	assert.Equal(t, 60.0, l.tokens, "reset refills to full capacity")

	// Next acquire should not need the bucket wait.
	before := len(clock.slept)
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, before, len(clock.slept))
}

func TestAcquireCanceledContext(t *testing.T) {
	l, _ := newTestLimiter(60)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireCanceledLeavesStateUntouched(t *testing.T) {
	l, clock := newTestLimiter(60)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Acquire(ctx))
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Acquire(canceled)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0.0, l.tokens, "no token consumed on canceled acquire")
	assert.Len(t, l.callTimes, 10, "no call recorded on canceled acquire")
	assert.Empty(t, clock.slept)
}

func TestConcurrentAcquire(t *testing.T) {
	// Real clock, tiny waits: 600/min refills 10 tokens per second.
	l := New(600)

	ctx := context.Background()
	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			done <- l.Acquire(ctx)
		}()
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.callTimes, 20, "every acquire recorded exactly once")
}
