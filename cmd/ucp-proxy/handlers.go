package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/catalog"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/client"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/metrics"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/ratelimit"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/session"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed client input.
var errBadRequest = errors.New("bad request")

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /ucp/products/by-handle/{handle}", a.throttle(a.handleProductByHandle))
	mux.Handle("GET /ucp/products/by-url", a.throttle(a.handleProductByURL))
	mux.Handle("GET /ucp/products/{id}", a.throttle(a.handleProduct))
	mux.Handle("POST /ucp/sessions", a.throttle(a.handleCreateSession))
	return mux
}

// throttle rejects requests beyond the inbound rate with 429.
func (a *app) throttle(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.inbound.Allow() {
			w.Header().Set("Retry-After", "1")
			a.writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
			return
		}
		next(w, r)
	})
}

// Health states.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

type healthResponse struct {
	Status    string                   `json:"status"`
	Breaker   breakerHealth            `json:"breaker"`
	CallLimit ratelimit.CallLimitState `json:"call_limit"`
}

type breakerHealth struct {
	Open      bool       `json:"open"`
	Failures  int        `json:"failures"`
	OpenSince *time.Time `json:"open_since,omitempty"`
}

// handleHealth reports the breaker and the upstream call bucket. An open
// circuit or an unhealthy bucket reads as degraded, still with 200.
func (a *app) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := a.upstream.Breaker().State()
	resp := healthResponse{
		Status:    healthOK,
		Breaker:   breakerHealth{Open: state.Open, Failures: state.Failures},
		CallLimit: a.upstream.Tracker().State(),
	}
	if state.Open {
		since := state.OpenSince
		resp.Breaker.OpenSince = &since
	}
	if state.Open || !resp.CallLimit.IsHealthy {
		resp.Status = healthDegraded
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *app) handleProduct(w http.ResponseWriter, r *http.Request) {
	flatten, err := flattenParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	id := r.PathValue("id")
	if flatten {
		listings, err := a.catalog.Listings(r.Context(), id)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.writeJSON(w, http.StatusOK, listings)
		return
	}

	listing, err := a.catalog.Listing(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, listing)
}

func (a *app) handleProductByHandle(w http.ResponseWriter, r *http.Request) {
	a.serveByHandle(w, r, r.PathValue("handle"))
}

func (a *app) handleProductByURL(w http.ResponseWriter, r *http.Request) {
	handle, err := catalog.HandleFromURL(r.URL.Query().Get("url"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.serveByHandle(w, r, handle)
}

func (a *app) serveByHandle(w http.ResponseWriter, r *http.Request, handle string) {
	flatten, err := flattenParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	product, err := a.catalog.ProductByHandle(r.Context(), handle)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if flatten {
		a.writeJSON(w, http.StatusOK, a.normalizer.Flatten(product))
		return
	}
	a.writeJSON(w, http.StatusOK, a.normalizer.Aggregate(product))
}

func (a *app) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	req := session.Request{Quantity: 1}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		a.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	resp, err := a.sessions.Create(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Status == session.StatusMaintenance {
		status = http.StatusServiceUnavailable
	}
	a.writeJSON(w, status, resp)
}

func flattenParam(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("flatten_variants")
	if raw == "" {
		return false, nil
	}
	flatten, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return flatten, nil
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, client.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, client.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, session.ErrVariantNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, catalog.ErrInvalidProductURL),
		errors.Is(err, session.ErrMissingProduct),
		errors.Is(err, session.ErrInvalidQuantity),
		errors.Is(err, session.ErrNoVariants):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (a *app) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	event := a.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = a.logger.Error()
	}
	event.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")

	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *app) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Error().Err(err).Int("status", status).Msg("Failed to write response")
	}
}
