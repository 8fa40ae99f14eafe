package scraper

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter enforces the outbound request ceiling shared by every category of a
// run: a token bucket spacing request starts plus a cap on in-flight requests.
type Limiter struct {
	rate     *rate.Limiter
	inflight *semaphore.Weighted
	jitter   time.Duration
}

// NewLimiter allows one request start per delay (unlimited when delay is 0),
// adds up to jitter of random extra wait, and keeps at most maxInFlight
// requests open.
func NewLimiter(delay, jitter time.Duration, maxInFlight int) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Limiter{
		rate:     rate.NewLimiter(limit, 1),
		inflight: semaphore.NewWeighted(int64(maxInFlight)),
		jitter:   jitter,
	}
}

// Acquire blocks until a request may start. The returned release must be
// called once the response has been consumed; it is safe to call twice.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := l.inflight.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	release := func() {
		once.Do(func() { l.inflight.Release(1) })
	}

	if err := l.rate.Wait(ctx); err != nil {
		release()
		return nil, err
	}
	if l.jitter > 0 {
		timer := time.NewTimer(rand.N(l.jitter))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return release, nil
}
