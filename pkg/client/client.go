// Package client provides the resilient access pipeline in front of the
// commerce API: response caching with conditional requests and stale
// fallback, circuit breaking, and token bucket rate limiting.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/breaker"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/cache"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream access.
var (
	ucpUpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ucp_upstream_requests_total",
		Help: "Total upstream requests by method and outcome",
	}, []string{"method", "outcome"})

	ucpUpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ucp_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds, including limiter wait",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	ucpUpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ucp_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})

	ucpStaleFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucp_stale_fallbacks_total",
		Help: "Total responses served from stale cache after an upstream failure",
	})
)

// Defaults for the upstream limiter.
const (
	DefaultRequestsPerSecond = 2.0
	DefaultBurst             = 10
)

// Client is the access pipeline.
type Client struct {
	transport         Transport
	limiter           *ratelimit.TokenBucket
	breaker           *breaker.Breaker
	cache             *cache.Manager
	tracker           *ratelimit.Tracker
	allowStaleOnError bool
	logger            zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Transport performs the upstream calls (required)
	Transport Transport

	// Limiter paces upstream calls; nil uses DefaultRequestsPerSecond/DefaultBurst
	Limiter *ratelimit.TokenBucket

	// Breaker guards the upstream; nil uses breaker defaults
	Breaker *breaker.Breaker

	// Cache stores GET responses; nil disables caching
	Cache *cache.Manager

	// Tracker observes the upstream call limit header; nil creates one
	Tracker *ratelimit.Tracker

	// AllowStaleOnError serves stale cache entries when the upstream fails
	AllowStaleOnError bool
}

// DefaultConfig returns a configuration with an in-memory cache and stale
// fallback enabled.
func DefaultConfig(transport Transport) Config {
	return Config{
		Transport:         transport,
		Cache:             cache.NewManager(cache.NewMemoryStore(), cache.DefaultConfig()),
		AllowStaleOnError: true,
	}
}

// New creates a new access pipeline.
func New(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	logger := log.With().Str("component", "upstream-client").Logger()

	limiter := cfg.Limiter
	if limiter == nil {
		var err error
		limiter, err = ratelimit.NewTokenBucket(DefaultRequestsPerSecond, DefaultBurst)
		if err != nil {
			return nil, fmt.Errorf("create rate limiter: %w", err)
		}
	}

	cb := cfg.Breaker
	if cb == nil {
		cb = breaker.New(breaker.DefaultFailureThreshold, breaker.DefaultResetTimeout)
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = ratelimit.NewTracker(logger)
	}

	return &Client{
		transport:         cfg.Transport,
		limiter:           limiter,
		breaker:           cb,
		cache:             cfg.Cache,
		tracker:           tracker,
		allowStaleOnError: cfg.AllowStaleOnError,
		logger:            logger,
	}, nil
}

// Do performs an upstream call through the pipeline.
//
// GET requests are answered from a fresh cache entry without touching the
// breaker or limiter. Otherwise the breaker is consulted, a limiter token is
// acquired, and a conditional request is sent when a validator is cached.
// A 304 returns the cached payload. Upstream failures count against the
// breaker and fall back to a stale entry when allowed.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	req.Method = method

	startTime := time.Now()
	defer func() {
		ucpUpstreamRequestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	cacheable := c.cache != nil && method == http.MethodGet
	key := cache.Key{Method: method, Endpoint: req.Endpoint, Query: req.Query}

	// Step 1: fresh cache hit
	if cacheable {
		if data, ok := c.cache.Get(ctx, key); ok {
			ucpUpstreamRequestsTotal.WithLabelValues(method, "cache_hit").Inc()
			return cachedResponse(data), nil
		}
	}

	// Step 2: breaker
	if err := c.breaker.Guard(); err != nil {
		c.logger.Warn().Str("endpoint", req.Endpoint).Msg("Upstream circuit open")
		ucpUpstreamRequestsTotal.WithLabelValues(method, "circuit_open").Inc()
		return c.fallback(ctx, key, cacheable, ErrCircuitOpen)
	}

	// Step 3: rate limit
	if err := c.limiter.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire rate limit token: %w", err)
	}

	// Step 4: conditional headers
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if cacheable {
		if etag := c.cache.GetETag(ctx, key); etag != "" {
			cache.AddConditionalHeaders(header, etag)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", req.Endpoint).
				Str("etag", etag).
				Msg("Making conditional request")
		}
	}
	req.Header = header

	// Step 5: transport
	c.logger.Debug().
		Str("endpoint", req.Endpoint).
		Str("method", method).
		Msg("Executing upstream request")

	resp, err := c.transport.RoundTrip(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return c.fail(ctx, key, cacheable, &UpstreamError{
			Class:    classify(0, err),
			Endpoint: req.Endpoint,
			Err:      err,
		})
	}

	if err := c.tracker.UpdateFromHeaders(resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update call limit from headers")
	}

	// Step 6: 304 Not Modified
	if resp.StatusCode == http.StatusNotModified && cacheable {
		if data, ok := c.cache.GetStale(ctx, key); ok {
			c.breaker.RecordSuccess()
			cache.NotModifiedResponses.Inc()
			ucpUpstreamRequestsTotal.WithLabelValues(method, "not_modified").Inc()
			c.logger.Debug().Str("endpoint", req.Endpoint).Msg("304 Not Modified - using cache")
			return cachedResponse(data), nil
		}
	}

	// Step 7: success
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.breaker.RecordSuccess()
		ucpUpstreamRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

		if cacheable {
			if err := c.cache.Set(ctx, key, resp.Body, cache.ETagFromHeaders(resp.Header)); err != nil {
				c.logger.Warn().Err(err).Str("endpoint", req.Endpoint).Msg("Failed to cache response")
			}
		}
		return resp, nil
	}

	// Step 8: upstream error, including a 304 with nothing cached
	return c.fail(ctx, key, cacheable, &UpstreamError{
		StatusCode: resp.StatusCode,
		Class:      classify(resp.StatusCode, nil),
		Endpoint:   req.Endpoint,
	})
}

// Get performs a GET request to an upstream endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, query map[string][]string) (*Response, error) {
	return c.Do(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: endpoint,
		Query:    query,
	})
}

// fail records an upstream failure and tries the stale fallback.
func (c *Client) fail(ctx context.Context, key cache.Key, cacheable bool, upErr *UpstreamError) (*Response, error) {
	if c.breaker.RecordFailure() {
		c.logger.Warn().
			Int("threshold", c.breaker.Threshold()).
			Dur("reset_timeout", c.breaker.ResetTimeout()).
			Msg("Upstream circuit opened")
	}

	ucpUpstreamErrorsTotal.WithLabelValues(string(upErr.Class)).Inc()
	ucpUpstreamRequestsTotal.WithLabelValues(key.Method, "error").Inc()

	c.logger.Warn().
		Str("endpoint", key.Endpoint).
		Int("status", upErr.StatusCode).
		Str("error_class", string(upErr.Class)).
		Msg("Upstream request error")

	return c.fallback(ctx, key, cacheable, upErr)
}

// fallback returns a stale cached payload in place of err when allowed.
func (c *Client) fallback(ctx context.Context, key cache.Key, cacheable bool, err error) (*Response, error) {
	if cacheable && c.allowStaleOnError {
		if data, ok := c.cache.GetStale(ctx, key); ok {
			ucpStaleFallbacksTotal.Inc()
			c.logger.Warn().
				Err(err).
				Str("endpoint", key.Endpoint).
				Msg("Serving stale cache entry")
			return cachedResponse(data), nil
		}
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		c.logger.Error().Err(err).Str("endpoint", key.Endpoint).Msg("Upstream request failed")
	}
	return nil, err
}

func cachedResponse(data []byte) *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       data,
	}
}

// Cache returns the cache manager, or nil when caching is disabled.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// Breaker returns the circuit breaker.
func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

// Limiter returns the upstream rate limiter.
func (c *Client) Limiter() *ratelimit.TokenBucket {
	return c.limiter
}

// Tracker returns the call limit tracker.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}
