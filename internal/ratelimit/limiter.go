package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter bounds outbound API calls with two independent admission
// layers sharing one quota: a token bucket refilled continuously at the
// per-minute rate, and a rolling 60-second window capped just under the
// nominal quota. Both layers are kept even though they overlap; each
// catches timing patterns the other misses.
type Limiter struct {
	mu sync.Mutex

	callsPerMinute int
	tokens         float64
	lastRefill     time.Time
	refillRate     float64 // tokens per second

	budgetMaxCalls int
	budgetWindow   time.Duration
	callTimes      []time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter for the given per-minute quota. The bucket
// starts deliberately small (at most 10 tokens) so a burst of workers at
// startup cannot spend a full minute's quota at once; the rolling window
// admits at most 92% of the nominal quota in any trailing 60 seconds.
func New(callsPerMinute int) *Limiter {
	if callsPerMinute < 1 {
		callsPerMinute = 1
	}

	initialTokens := callsPerMinute / 6
	if initialTokens > 10 {
		initialTokens = 10
	}

	budgetMaxCalls := int(float64(callsPerMinute) * 0.92)
	if budgetMaxCalls < 1 {
		budgetMaxCalls = 1
	}

	return &Limiter{
		callsPerMinute: callsPerMinute,
		tokens:         float64(initialTokens),
		lastRefill:     time.Now(),
		refillRate:     float64(callsPerMinute) / 60.0,
		budgetMaxCalls: budgetMaxCalls,
		budgetWindow:   60 * time.Second,
		now:            time.Now,
		sleep:          sleepContext,
	}
}

// Acquire blocks until one more external call fits both budgets, then
// records the call. It fails only when ctx is canceled. Waiting happens
// while holding the lock, so a sleeping caller serializes every other
// caller behind it; that is the intended backpressure under a shared
// quota.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Rolling window: wait until the oldest recorded call ages out.
	for {
		l.purge(l.now())
		if len(l.callTimes) < l.budgetMaxCalls {
			break
		}
		wait := l.budgetWindow - l.now().Sub(l.callTimes[0])
		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}

	// Token bucket: refill on elapsed time, wait out any deficit.
	l.refill(l.now())
	if l.tokens < 1 {
		wait := time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		l.refill(l.now())
	}

	l.tokens--
	l.callTimes = append(l.callTimes, l.now())
	return nil
}

// Reset refills the bucket to full capacity. Called after honoring a
// server-declared retry-after, when the server's own window is known to
// have rolled over.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = float64(l.callsPerMinute)
	l.lastRefill = l.now()
}

// purge drops recorded calls that have aged out of the rolling window
func (l *Limiter) purge(now time.Time) {
	for len(l.callTimes) > 0 && now.Sub(l.callTimes[0]) >= l.budgetWindow {
		l.callTimes = l.callTimes[1:]
	}
}

// refill adds tokens for the time elapsed since the last refill, capped
// at the per-minute quota
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens += elapsed * l.refillRate
	if l.tokens > float64(l.callsPerMinute) {
		l.tokens = float64(l.callsPerMinute)
	}
	l.lastRefill = now
}

// sleepContext sleeps for d or until ctx is canceled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
