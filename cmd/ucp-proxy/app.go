package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/breaker"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/cache"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/catalog"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/client"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/config"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/logging"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/normalize"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/ratelimit"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// app holds the wired services behind the HTTP routes.
type app struct {
	upstream   *client.Client
	catalog    *catalog.Service
	normalizer *normalize.Normalizer
	sessions   *session.Service
	inbound    *rate.Limiter
	closers    []io.Closer
	logger     zerolog.Logger
}

// newApp wires the services described by cfg.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{
		inbound: rate.NewLimiter(rate.Limit(cfg.Server.InboundRPS), cfg.Server.InboundBurst),
		logger:  logging.NewLogger("http"),
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		rc, err := connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		redisClient = rc
		a.closers = append(a.closers, rc)
	}

	limiter, err := ratelimit.NewTokenBucket(cfg.RateLimit.MaxRequestsPerSecond, cfg.RateLimit.BurstSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	var manager *cache.Manager
	if cfg.RateLimit.EnableCaching {
		var store cache.Store = cache.NewMemoryStore()
		if redisClient != nil {
			store = cache.NewRedisStore(redisClient, cfg.RateLimit.StaleTTL)
		}
		manager = cache.NewManager(store, cache.Config{
			TTL:      cfg.RateLimit.CacheTTL,
			StaleTTL: cfg.RateLimit.StaleTTL,
		})
	}

	upstream, err := client.New(client.Config{
		Transport:         client.NewHTTPTransport(cfg.ShopURL(), cfg.Shopify.AccessToken),
		Limiter:           limiter,
		Breaker:           breaker.New(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeout),
		Cache:             manager,
		AllowStaleOnError: cfg.RateLimit.AllowStaleOnError,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.upstream = upstream

	a.normalizer = normalize.New(normalize.Config{
		Seller:          model.Organization{Name: cfg.Organization.Name, URL: cfg.Organization.URL},
		DefaultCurrency: cfg.Currency.DefaultCurrency,
		TaxRate:         cfg.TaxRate(),
		TaxIncluded:     cfg.Tax.IncludeInPrice,
		BufferStock:     cfg.Inventory.BufferStock,
	})

	a.catalog, err = catalog.New(catalog.Config{
		Client:     upstream,
		Normalizer: a.normalizer,
		APIVersion: cfg.Shopify.APIVersion,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := a.sessionStore(cfg, redisClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sessions, err = session.NewService(session.Config{
		Store:             store,
		Products:          a.catalog,
		Normalizer:        a.normalizer,
		RegionRates:       cfg.RegionTaxRates(),
		IdempotencyWindow: cfg.Session.IdempotencyWindow,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) sessionStore(cfg config.Config, redisClient *redis.Client) (session.Store, error) {
	switch cfg.Session.Backend {
	case config.BackendSQLite:
		store, err := session.NewSQLiteStore(cfg.Session.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		return store, nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis session backend needs redis.url")
		}
		return session.NewRedisStore(redisClient, cfg.Session.IdempotencyWindow), nil
	default:
		return session.NewMemoryStore(), nil
	}
}

// connectRedis accepts a redis:// URL or a bare host:port address.
func connectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts := &redis.Options{Addr: rawURL}
	if strings.Contains(rawURL, "://") {
		parsed, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	rc := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rc, nil
}

// Close releases the stores opened by newApp.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
