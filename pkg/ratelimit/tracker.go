package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream call limit tracking.
var (
	ucpCallLimitUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ucp_upstream_call_limit_utilization",
		Help: "Fraction of the upstream API call bucket in use",
	})

	ucpCallLimitWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucp_upstream_call_limit_warnings_total",
		Help: "Total responses reporting the upstream call bucket above the warning threshold",
	})
)

// Tracker records the upstream call limit reported on each response.
type Tracker struct {
	mu     sync.RWMutex
	state  CallLimitState
	seen   bool
	logger zerolog.Logger
}

// NewTracker creates a call limit tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// State returns the last observed state. Before any header was seen it
// reports a healthy, empty bucket.
func (t *Tracker) State() CallLimitState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.seen {
		return CallLimitState{IsHealthy: true}
	}
	return t.state
}

// UpdateFromHeaders parses the call limit header, if present, and updates
// the tracked state.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	value := headers.Get(HeaderCallLimit)
	if value == "" {
		// Not every endpoint reports it.
		return nil
	}

	used, max, err := ParseCallLimit(value)
	if err != nil {
		return err
	}

	state := CallLimitState{
		Used:       used,
		Max:        max,
		LastUpdate: time.Now(),
	}
	state.UpdateHealth()

	t.mu.Lock()
	t.state = state
	t.seen = true
	t.mu.Unlock()

	ucpCallLimitUtilization.Set(state.Utilization())

	switch {
	case state.IsCritical():
		ucpCallLimitWarningsTotal.Inc()
		t.logger.Error().
			Int("used", used).
			Int("max", max).
			Msg("Upstream call limit CRITICAL - next calls may be rejected")
	case state.NeedsThrottling():
		ucpCallLimitWarningsTotal.Inc()
		t.logger.Warn().
			Int("used", used).
			Int("max", max).
			Msg("Upstream call limit WARNING")
	default:
		t.logger.Debug().
			Int("used", used).
			Int("max", max).
			Msg("Upstream call limit updated")
	}

	return nil
}
