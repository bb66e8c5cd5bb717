package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for outbound admission control.
var (
	ucpLimiterWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucp_ratelimit_waits_total",
		Help: "Total number of times an acquisition had to wait for tokens",
	})

	ucpLimiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ucp_ratelimit_wait_seconds",
		Help:    "Time spent waiting for rate limit tokens",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	ucpLimiterRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucp_ratelimit_try_rejected_total",
		Help: "Total number of non-blocking acquisitions that found too few tokens",
	})
)

var (
	// ErrInvalidConfig is returned by NewTokenBucket for a non-positive rate or burst.
	ErrInvalidConfig = errors.New("invalid rate limiter configuration")

	// ErrExceedsBurst is returned when more tokens are requested than the
	// bucket can ever hold.
	ErrExceedsBurst = errors.New("requested tokens exceed burst capacity")
)

// TokenBucket is a lazily refilled token bucket guarding calls to one
// upstream target. The token count always stays within [0, burst].
type TokenBucket struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      float64
	tokens     float64
	lastRefill time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a TokenBucket.
type Option func(*TokenBucket)

// WithClock replaces the wall clock and the sleep function. Tests use it to
// drive the bucket deterministically.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(b *TokenBucket) {
		if now != nil {
			b.now = now
		}
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// NewTokenBucket creates a full bucket refilling at rate tokens per second
// up to burst tokens.
func NewTokenBucket(rate float64, burst int, opts ...Option) (*TokenBucket, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w: rate must be > 0 (got %v)", ErrInvalidConfig, rate)
	}
	if burst <= 0 {
		return nil, fmt.Errorf("%w: burst must be > 0 (got %d)", ErrInvalidConfig, burst)
	}

	b := &TokenBucket{
		rate:  rate,
		burst: float64(burst),
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.tokens = b.burst
	b.lastRefill = b.now()

	return b, nil
}

// Rate returns the refill rate in tokens per second.
func (b *TokenBucket) Rate() float64 {
	return b.rate
}

// Burst returns the bucket capacity.
func (b *TokenBucket) Burst() int {
	return int(b.burst)
}

// Acquire blocks until n tokens are available and debits them. It returns
// ctx.Err() if the context ends first; nothing is debited in that case.
func (b *TokenBucket) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if float64(n) > b.burst {
		return fmt.Errorf("%w: requested %d, burst %d", ErrExceedsBurst, n, int(b.burst))
	}

	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait, ok := b.take(float64(n))
		if ok {
			if waited > 0 {
				ucpLimiterWaitSeconds.Observe(waited.Seconds())
			}
			return nil
		}

		ucpLimiterWaitsTotal.Inc()
		// The lock is released while sleeping; the refill is recomputed on wake.
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
		waited += wait
	}
}

// TryAcquire debits n tokens if they are available right now.
func (b *TokenBucket) TryAcquire(n int) bool {
	if n <= 0 {
		return true
	}
	if float64(n) > b.burst {
		return false
	}
	if _, ok := b.take(float64(n)); ok {
		return true
	}
	ucpLimiterRejectedTotal.Inc()
	return false
}

// Tokens returns the current token count after a refill.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// take refills and debits n tokens atomically. When too few tokens are
// available it returns the time needed to accumulate the shortfall.
func (b *TokenBucket) take(n float64) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= n {
		b.tokens -= n
		return 0, true
	}

	seconds := (n - b.tokens) / b.rate
	return time.Duration(math.Ceil(seconds * float64(time.Second))), false
}

// refill must be called with mu held.
func (b *TokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.burst, b.tokens+elapsed*b.rate)
	}
	b.lastRefill = now
}

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
