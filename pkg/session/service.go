package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/client"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/normalize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Prometheus metrics for session creation.
var (
	ucpSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ucp_sessions_total",
		Help: "Total session requests by outcome",
	}, []string{"outcome"}) // "created", "replayed", "maintenance", "error"

	ucpSessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ucp_session_create_duration_seconds",
		Help:    "Duration of session creation in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// Session errors.
var (
	ErrNoVariants      = errors.New("product has no variants")
	ErrVariantNotFound = errors.New("variant not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrMissingProduct  = errors.New("product id is required")
)

// StatusMaintenance is answered while the upstream circuit is open.
const StatusMaintenance = "UCP_STATUS_MAINTENANCE"

// DefaultIdempotencyWindow is how long a stored response is replayed.
const DefaultIdempotencyWindow = 300 * time.Second

// Address is the shipping destination used for tax estimation.
type Address struct {
	CountryCode string `json:"country_code,omitempty"`
}

// Request asks for a checkout session.
type Request struct {
	ProductID       string   `json:"product_id"`
	VariantID       string   `json:"variant_id,omitempty"`
	Quantity        int      `json:"quantity"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	CartToken       string   `json:"cart_token,omitempty"`
	IdempotencyKey  string   `json:"idempotency_key,omitempty"`
}

// Key returns the idempotency key of r: the cart token, else the explicit
// idempotency key.
func (r Request) Key() string {
	if r.CartToken != "" {
		return r.CartToken
	}
	return r.IdempotencyKey
}

// Response is a created session, or a bare status while the upstream is
// unavailable.
type Response struct {
	Status    string `json:"status,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	VariantID string `json:"variant_id,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Subtotal  string `json:"subtotal,omitempty"`
	Tax       string `json:"tax,omitempty"`
	Total     string `json:"total,omitempty"`
	Country   string `json:"country,omitempty"`
}

// ProductSource fetches upstream products.
type ProductSource interface {
	Product(ctx context.Context, id string) (*model.UpstreamProduct, error)
}

// Config holds the session service dependencies.
type Config struct {
	// Store keeps responses for idempotent replay (required)
	Store Store

	// Products fetches the product being checked out (required)
	Products ProductSource

	// Normalizer resolves variant prices and supplies tax settings (required)
	Normalizer *normalize.Normalizer

	// RegionRates override the default tax rate by upper-case country code
	RegionRates map[string]decimal.Decimal

	// IdempotencyWindow defaults to DefaultIdempotencyWindow
	IdempotencyWindow time.Duration
}

// Service creates checkout sessions.
type Service struct {
	store       Store
	products    ProductSource
	normalizer  *normalize.Normalizer
	regionRates map[string]decimal.Decimal
	window      time.Duration
	now         func() time.Time
	newID       func() string
	logger      zerolog.Logger
}

// NewService creates a session service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Products == nil {
		return nil, fmt.Errorf("product source is required")
	}
	if cfg.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	if cfg.IdempotencyWindow <= 0 {
		cfg.IdempotencyWindow = DefaultIdempotencyWindow
	}

	rates := make(map[string]decimal.Decimal, len(cfg.RegionRates))
	for country, rate := range cfg.RegionRates {
		rates[strings.ToUpper(country)] = rate
	}

	return &Service{
		store:       cfg.Store,
		products:    cfg.Products,
		normalizer:  cfg.Normalizer,
		regionRates: rates,
		window:      cfg.IdempotencyWindow,
		now:         time.Now,
		newID:       NewSessionID,
		logger:      log.With().Str("component", "session").Logger(),
	}, nil
}

// WithClock replaces the clock used for idempotency windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NewSessionID returns a fresh "sess_<32 hex>" identifier.
func NewSessionID() string {
	id := uuid.New()
	return "sess_" + strings.ReplaceAll(id.String(), "-", "")
}

// Create returns the session for req. A request whose idempotency key was
// answered within the window gets the stored response verbatim.
func (s *Service) Create(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	defer func() {
		ucpSessionDuration.Observe(time.Since(start).Seconds())
	}()

	if req.ProductID == "" {
		ucpSessionsTotal.WithLabelValues("error").Inc()
		return nil, ErrMissingProduct
	}
	if req.Quantity < 1 {
		ucpSessionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, req.Quantity)
	}

	now := s.now()
	key := req.Key()

	if key != "" {
		if resp, ok := s.replay(ctx, key, now); ok {
			ucpSessionsTotal.WithLabelValues("replayed").Inc()
			return resp, nil
		}
	}

	product, err := s.products.Product(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, client.ErrCircuitOpen) {
			ucpSessionsTotal.WithLabelValues("maintenance").Inc()
			s.logger.Warn().Str("product_id", req.ProductID).Msg("Upstream unavailable, session deferred")
			return &Response{Status: StatusMaintenance}, nil
		}
		ucpSessionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch product %s: %w", req.ProductID, err)
	}

	resp, err := s.price(product, req)
	if err != nil {
		ucpSessionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if key != "" {
		if err := s.store.Set(ctx, key, Record{Response: *resp, Timestamp: now}); err != nil {
			s.logger.Error().Err(err).Str("session_id", resp.SessionID).Msg("Failed to persist session")
		}
	}

	ucpSessionsTotal.WithLabelValues("created").Inc()
	s.logger.Info().
		Str("session_id", resp.SessionID).
		Str("product_id", resp.ProductID).
		Str("variant_id", resp.VariantID).
		Dur("duration", time.Since(start)).
		Msg("Session created")

	return resp, nil
}

// replay returns the stored response for key if it is within the window.
func (s *Service) replay(ctx context.Context, key string, now time.Time) (*Response, bool) {
	record, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Session store lookup failed")
		}
		return nil, false
	}

	if now.Sub(record.Timestamp) > s.window {
		return nil, false
	}

	resp := record.Response
	return &resp, true
}

// price builds a new session for product.
func (s *Service) price(product *model.UpstreamProduct, req Request) (*Response, error) {
	if len(product.Variants) == 0 {
		return nil, fmt.Errorf("product %s: %w", product.ID, ErrNoVariants)
	}

	variant := product.Variants[0]
	if req.VariantID != "" {
		v, ok := product.Variant(req.VariantID)
		if !ok {
			return nil, fmt.Errorf("product %s variant %s: %w", product.ID, req.VariantID, ErrVariantNotFound)
		}
		variant = v
	}

	amount, currency := s.normalizer.BasePrice(variant)
	price, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("variant %s: invalid price %q: %w", variant.ID, amount, err)
	}

	subtotal := price.Mul(decimal.NewFromInt(int64(req.Quantity)))

	var country string
	if req.ShippingAddress != nil {
		country = strings.ToUpper(strings.TrimSpace(req.ShippingAddress.CountryCode))
	}

	cfg := s.normalizer.Config()
	tax := decimal.Zero
	if !cfg.TaxIncluded {
		rate := cfg.TaxRate
		if r, ok := s.regionRates[country]; ok && country != "" {
			rate = r
		}
		tax = subtotal.Mul(rate).Round(2)
	}
	total := subtotal.Add(tax).Round(2)

	return &Response{
		SessionID: s.newID(),
		ProductID: req.ProductID,
		VariantID: variant.ID,
		Currency:  currency,
		Subtotal:  subtotal.StringFixed(2),
		Tax:       tax.StringFixed(2),
		Total:     total.StringFixed(2),
		Country:   country,
	}, nil
}
