package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by kind (fresh, stale)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucp_cache_hits_total",
			Help: "Total number of upstream response cache hits",
		},
		[]string{"kind"}, // "fresh", "stale"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ucp_cache_misses_total",
			Help: "Total number of upstream response cache misses",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ucp_304_responses_total",
			Help: "Total number of upstream 304 Not Modified responses",
		},
	)

	// ConditionalRequestsSent tracks requests sent with If-None-Match
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ucp_conditional_requests_total",
			Help: "Total number of conditional requests sent upstream",
		},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucp_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"}, // "load", "save", "delete", "clear"
	)
)
