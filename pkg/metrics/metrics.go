// Package metrics exposes the Prometheus metrics of the catalog adapter.
// Collectors are defined in their own packages (breaker, cache, client,
// normalize, ratelimit, session) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all adapter collectors are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer serves the collected metrics.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate limit (pkg/ratelimit):
//   - ucp_ratelimit_waits_total (Counter): Acquire calls that had to wait
//   - ucp_ratelimit_wait_seconds (Histogram): time spent waiting for tokens
//   - ucp_ratelimit_try_rejected_total (Counter): TryAcquire calls without tokens
//   - ucp_upstream_call_limit_utilization (Gauge): last reported call limit usage
//   - ucp_upstream_call_limit_warnings_total (Counter): responses near the call limit
//
// Cache (pkg/cache):
//   - ucp_cache_hits_total{kind} (Counter): fresh and stale hits
//   - ucp_cache_misses_total (Counter)
//   - ucp_304_responses_total (Counter): Not Modified answers
//   - ucp_conditional_requests_total (Counter): requests sent with If-None-Match
//   - ucp_cache_errors_total{operation} (Counter)
//
// Breaker (pkg/breaker):
//   - ucp_breaker_opened_total (Counter)
//   - ucp_breaker_rejected_total (Counter)
//   - ucp_breaker_open (Gauge)
//
// Upstream (pkg/client):
//   - ucp_upstream_requests_total{method, outcome} (Counter)
//   - ucp_upstream_request_duration_seconds{method} (Histogram)
//   - ucp_upstream_errors_total{class} (Counter)
//   - ucp_stale_fallbacks_total (Counter)
//
// Normalizer (pkg/normalize):
//   - ucp_currency_fallbacks_total{stage} (Counter)
//
// Sessions (pkg/session):
//   - ucp_sessions_total{outcome} (Counter)
//   - ucp_session_create_duration_seconds (Histogram)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ucp_cache_hits_total{kind="fresh"}[5m])) /
//   (sum(rate(ucp_cache_hits_total{kind="fresh"}[5m])) + sum(rate(ucp_cache_misses_total[5m])))
//
//   # Circuit currently open
//   ucp_breaker_open == 1
//
//   # Stale fallback rate
//   rate(ucp_stale_fallbacks_total[5m])
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(ucp_upstream_request_duration_seconds_bucket[5m]))
