// Package breaker implements a consecutive-failure circuit breaker for calls
// to the commerce API.
//
// The breaker has no separate half-open state. Once the reset timeout has
// elapsed the next evaluation closes it again with a zeroed counter, so the
// following call is let through as an implicit probe; it reopens only after
// the counter climbs back to the threshold.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for breaker transitions.
var (
	ucpBreakerOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucp_breaker_opened_total",
		Help: "Total number of times the upstream circuit opened",
	})

	ucpBreakerRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucp_breaker_rejected_total",
		Help: "Total number of calls rejected while the circuit was open",
	})

	ucpBreakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ucp_breaker_open",
		Help: "1 while the upstream circuit is open",
	})
)

// ErrOpen is returned by Guard while the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// Defaults applied by New for out-of-range arguments.
const (
	DefaultFailureThreshold = 3
	DefaultResetTimeout     = 30 * time.Second
)

// State is a point-in-time view of the breaker.
type State struct {
	Open      bool
	Failures  int
	OpenSince time.Time
}

// Breaker counts consecutive failures and fails fast while open.
type Breaker struct {
	mu           sync.Mutex
	threshold    int
	resetTimeout time.Duration
	failures     int
	openedAt     time.Time // zero while closed

	now func() time.Time
}

// New creates a closed breaker. A threshold below 1 falls back to
// DefaultFailureThreshold and a non-positive timeout to DefaultResetTimeout.
func New(threshold int, resetTimeout time.Duration) *Breaker {
	if threshold < 1 {
		threshold = DefaultFailureThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	return &Breaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// WithClock replaces the clock used for open timestamps.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	return b
}

// IsOpen reports whether calls should be rejected. The first evaluation after
// the reset timeout closes the breaker and clears the failure counter.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpenLocked()
}

func (b *Breaker) isOpenLocked() bool {
	if b.openedAt.IsZero() {
		return false
	}
	if b.now().Sub(b.openedAt) >= b.resetTimeout {
		b.openedAt = time.Time{}
		b.failures = 0
		ucpBreakerOpen.Set(0)
		return false
	}
	return true
}

// Guard returns ErrOpen while the circuit is open.
func (b *Breaker) Guard() error {
	if b.IsOpen() {
		ucpBreakerRejectedTotal.Inc()
		return ErrOpen
	}
	return nil
}

// RecordSuccess resets the failure counter and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.openedAt.IsZero() {
		ucpBreakerOpen.Set(0)
	}
	b.failures = 0
	b.openedAt = time.Time{}
}

// RecordFailure counts a failure and opens the circuit once the threshold is
// reached. It reports whether this call opened the circuit.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures < b.threshold {
		return false
	}

	wasOpen := !b.openedAt.IsZero()
	b.openedAt = b.now()
	if !wasOpen {
		ucpBreakerOpenedTotal.Inc()
		ucpBreakerOpen.Set(1)
	}
	return !wasOpen
}

// State returns a snapshot without triggering the timeout transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return State{
		Open:      !b.openedAt.IsZero() && b.now().Sub(b.openedAt) < b.resetTimeout,
		Failures:  b.failures,
		OpenSince: b.openedAt,
	}
}

// Threshold returns the configured failure threshold.
func (b *Breaker) Threshold() int {
	return b.threshold
}

// ResetTimeout returns the configured reset timeout.
func (b *Breaker) ResetTimeout() time.Duration {
	return b.resetTimeout
}
