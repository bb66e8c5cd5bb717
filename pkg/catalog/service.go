// Package catalog fetches products through the access pipeline and turns
// them into UCP listings.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/cache"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/client"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/normalize"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/shopify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrProductNotFound is returned when a handle lookup matches no product.
var ErrProductNotFound = errors.New("product not found")

// DefaultAPIVersion is the upstream API version used when none is set.
const DefaultAPIVersion = "2024-01"

// Config holds the catalog service dependencies.
type Config struct {
	// Client is the upstream access pipeline (required)
	Client *client.Client

	// Normalizer maps upstream products to listings (required)
	Normalizer *normalize.Normalizer

	// APIVersion selects the upstream REST version
	APIVersion string

	// MaxConcurrency bounds parallel fetches in ListingsByIDs
	MaxConcurrency int

	// FetchTimeout bounds a single fetch in ListingsByIDs
	FetchTimeout time.Duration
}

// Service reads products and listings.
type Service struct {
	client     *client.Client
	normalizer *normalize.Normalizer
	apiVersion string
	batch      batchConfig
	logger     zerolog.Logger
}

// New creates a catalog service.
func New(cfg Config) (*Service, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if cfg.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	return &Service{
		client:     cfg.Client,
		normalizer: cfg.Normalizer,
		apiVersion: cfg.APIVersion,
		batch:      newBatchConfig(cfg.MaxConcurrency, cfg.FetchTimeout),
		logger:     log.With().Str("component", "catalog").Logger(),
	}, nil
}

// Product fetches and decodes a single product.
func (s *Service) Product(ctx context.Context, id string) (*model.UpstreamProduct, error) {
	resp, err := s.client.Get(ctx, shopify.ProductEndpoint(s.apiVersion, id), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch product %s: %w", id, err)
	}

	product, err := shopify.DecodeProduct(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	return product, nil
}

// Products fetches up to limit products.
func (s *Service) Products(ctx context.Context, limit int) ([]model.UpstreamProduct, error) {
	resp, err := s.client.Get(ctx, shopify.ProductsEndpoint(s.apiVersion), shopify.LimitQuery(limit))
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	return shopify.DecodeProducts(resp.Body)
}

// ProductByHandle looks up a product by its URL handle.
func (s *Service) ProductByHandle(ctx context.Context, handle string) (*model.UpstreamProduct, error) {
	resp, err := s.client.Get(ctx, shopify.ProductsEndpoint(s.apiVersion), map[string][]string{"handle": {handle}})
	if err != nil {
		return nil, fmt.Errorf("fetch product by handle %s: %w", handle, err)
	}

	products, err := shopify.DecodeProducts(resp.Body)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].Handle == handle || products[i].Handle == "" {
			return &products[i], nil
		}
	}
	return nil, fmt.Errorf("handle %s: %w", handle, ErrProductNotFound)
}

// Listing returns the aggregated listing of a product.
func (s *Service) Listing(ctx context.Context, id string) (model.Listing, error) {
	product, err := s.Product(ctx, id)
	if err != nil {
		return model.Listing{}, err
	}
	return s.normalizer.Aggregate(product), nil
}

// Listings returns one listing per variant of a product.
func (s *Service) Listings(ctx context.Context, id string) ([]model.Listing, error) {
	product, err := s.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Flatten(product), nil
}

// ListingsPage returns aggregated listings for up to limit products.
func (s *Service) ListingsPage(ctx context.Context, limit int) ([]model.Listing, error) {
	products, err := s.Products(ctx, limit)
	if err != nil {
		return nil, err
	}

	listings := make([]model.Listing, 0, len(products))
	for i := range products {
		listings = append(listings, s.normalizer.Aggregate(&products[i]))
	}
	return listings, nil
}

// Invalidate drops the cached response of a product.
func (s *Service) Invalidate(ctx context.Context, id string) error {
	manager := s.client.Cache()
	if manager == nil {
		return nil
	}

	key := cache.Key{Endpoint: shopify.ProductEndpoint(s.apiVersion, id)}
	if err := manager.Invalidate(ctx, key); err != nil {
		return err
	}

	s.logger.Debug().Str("product_id", id).Msg("Invalidated product")
	return nil
}

// InvalidateAll drops every cached response.
func (s *Service) InvalidateAll(ctx context.Context) error {
	manager := s.client.Cache()
	if manager == nil {
		return nil
	}
	return manager.Clear(ctx)
}
