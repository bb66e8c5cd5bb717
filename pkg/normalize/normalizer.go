// Package normalize converts upstream products into UCP/Schema.org catalog
// listings, resolving currency, tax and availability per variant.
//
// The normalizer is pure: it performs no I/O and never fails on business
// data. Injected currency hooks are called through adapters that turn errors
// and panics into "keep the original price".
package normalize

import (
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ucpCurrencyFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ucp_currency_fallbacks_total",
	Help: "Total offers that kept their original currency after a currency hook failed",
}, []string{"stage"}) // "override", "exchange"

// Config holds the pricing and availability settings.
type Config struct {
	// Seller is attached to every offer
	Seller model.Organization

	// DefaultCurrency applies to variants without a currency code
	DefaultCurrency string

	// TaxRate is applied when TaxIncluded is false (e.g., 0.08)
	TaxRate decimal.Decimal

	// TaxIncluded reports that upstream prices already contain tax
	TaxIncluded bool

	// BufferStock is the quantity a variant must exceed to be in stock
	BufferStock int
}

// DefaultConfig returns USD pricing with tax included and no buffer stock.
func DefaultConfig() Config {
	return Config{
		DefaultCurrency: "USD",
		TaxRate:         decimal.Zero,
		TaxIncluded:     true,
		BufferStock:     0,
	}
}

// CurrencyOverrideFunc chooses the display currency for a variant.
type CurrencyOverrideFunc func(v model.UpstreamVariant) (string, error)

// ExchangeRateFunc converts amount from one currency to another.
type ExchangeRateFunc func(amount decimal.Decimal, from, to string) (decimal.Decimal, error)

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCurrencyOverride installs a display currency hook.
func WithCurrencyOverride(fn CurrencyOverrideFunc) Option {
	return func(n *Normalizer) { n.currencyOverride = fn }
}

// WithExchangeRate installs a currency conversion hook.
func WithExchangeRate(fn ExchangeRateFunc) Option {
	return func(n *Normalizer) { n.exchangeRate = fn }
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(n *Normalizer) { n.logger = logger }
}

// Normalizer builds listings from upstream products.
type Normalizer struct {
	cfg              Config
	currencyOverride CurrencyOverrideFunc
	exchangeRate     ExchangeRateFunc
	logger           zerolog.Logger
}

// New creates a normalizer.
func New(cfg Config, opts ...Option) *Normalizer {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultConfig().DefaultCurrency
	}
	if cfg.BufferStock < 0 {
		cfg.BufferStock = 0
	}

	n := &Normalizer{
		cfg:    cfg,
		logger: log.With().Str("component", "normalizer").Logger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Config returns the normalizer settings.
func (n *Normalizer) Config() Config {
	return n.cfg
}

// Aggregate returns one listing carrying an offer per variant.
func (n *Normalizer) Aggregate(p *model.UpstreamProduct) model.Listing {
	listing := n.baseListing(p)
	for _, v := range p.Variants {
		listing.Offers = append(listing.Offers, n.Offer(p, v))
	}
	return listing
}

// Flatten returns one listing per variant, each with a single offer. A
// product without variants yields one listing without offers.
func (n *Normalizer) Flatten(p *model.UpstreamProduct) []model.Listing {
	if len(p.Variants) == 0 {
		return []model.Listing{n.baseListing(p)}
	}

	listings := make([]model.Listing, 0, len(p.Variants))
	for _, v := range p.Variants {
		offer := n.Offer(p, v)

		listing := n.baseListing(p)
		listing.ProductID = p.ID + "#" + v.ID
		if offer.Name != nil {
			listing.Name = p.Title + " - " + *offer.Name
		}
		listing.Offers = []model.Offer{offer}
		listings = append(listings, listing)
	}
	return listings
}

// Offer converts one variant of p.
func (n *Normalizer) Offer(p *model.UpstreamProduct, v model.UpstreamVariant) model.Offer {
	price, currency := n.resolvePrice(v)

	offer := model.Offer{
		URL: p.OnlineStoreURL,
		PriceSpecification: model.PriceSpecification{
			Price:                 price,
			PriceCurrency:         currency,
			ValueAddedTaxIncluded: n.cfg.TaxIncluded,
		},
		ItemCondition: model.ConditionNew,
		Availability:  n.availability(v),
		Seller:        n.cfg.Seller,
		SKU:           v.SKU,
		GTIN:          v.Barcode,
		VariantID:     v.ID,
	}

	if !v.IsDefault() && v.Title != "" {
		name := v.Title
		offer.Name = &name
	}

	return offer
}

func (n *Normalizer) baseListing(p *model.UpstreamProduct) model.Listing {
	listing := model.Listing{
		ProductID:     p.ID,
		Name:          p.Title,
		Description:   Description(p),
		Image:         make([]model.ImageObject, 0, len(p.Images)),
		Category:      p.ProductType,
		Keywords:      Keywords(p.Tags, p.ProductType),
		Offers:        make([]model.Offer, 0, len(p.Variants)),
		URL:           p.OnlineStoreURL,
		DatePublished: p.PublishedAt,
		DateModified:  p.UpdatedAt,
	}

	for _, img := range p.Images {
		listing.Image = append(listing.Image, model.ImageObject{
			URL:    img.URL,
			Name:   img.AltText,
			Width:  img.Width,
			Height: img.Height,
		})
	}

	if p.Vendor != "" {
		listing.Brand = &model.Organization{Name: p.Vendor}
	}

	return listing
}

// availability prefers a numeric quantity, then the inventory flag, then the
// variant flag.
func (n *Normalizer) availability(v model.UpstreamVariant) model.Availability {
	inStock := v.Available
	if inv := v.Inventory; inv != nil {
		if inv.Quantity != nil {
			inStock = *inv.Quantity > n.cfg.BufferStock
		} else {
			inStock = inv.Available
		}
	}

	if inStock {
		return model.AvailabilityInStock
	}
	return model.AvailabilityOutOfStock
}
