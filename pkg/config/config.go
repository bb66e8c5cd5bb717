// Package config loads the catalog adapter configuration from a YAML file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/logging"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables that override file values.
const (
	EnvShopDomain  = "SHOPIFY_SHOP_DOMAIN"
	EnvAccessToken = "SHOPIFY_ACCESS_TOKEN"
	EnvAPIVersion  = "SHOPIFY_API_VERSION"
	EnvRedisURL    = "REDIS_URL"
	EnvLogLevel    = "LOG_LEVEL"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the complete adapter configuration.
type Config struct {
	Shopify      ShopifyConfig      `yaml:"shopify"`
	Organization OrganizationConfig `yaml:"organization"`
	Tax          TaxConfig          `yaml:"tax"`
	Currency     CurrencyConfig     `yaml:"currency"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Inventory    InventoryConfig    `yaml:"inventory"`
	Breaker      BreakerConfig      `yaml:"breaker"`
	Session      SessionConfig      `yaml:"session"`
	Redis        RedisConfig        `yaml:"redis"`
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
}

// ShopifyConfig locates the upstream shop.
type ShopifyConfig struct {
	ShopDomain  string `yaml:"shop_domain"`
	AccessToken string `yaml:"access_token"`
	APIVersion  string `yaml:"api_version"`
}

// OrganizationConfig describes the seller named on every offer.
type OrganizationConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// TaxConfig holds tax rates as fractions (0.08 = 8%).
type TaxConfig struct {
	DefaultRate    float64            `yaml:"default_rate"`
	IncludeInPrice bool               `yaml:"include_in_price"`
	RegionRates    map[string]float64 `yaml:"region_rates"`
}

// CurrencyConfig holds the currency defaults.
type CurrencyConfig struct {
	DefaultCurrency     string   `yaml:"default_currency"`
	SupportedCurrencies []string `yaml:"supported_currencies"`
}

// RateLimitConfig configures the upstream limiter and cache.
type RateLimitConfig struct {
	MaxRequestsPerSecond float64       `yaml:"max_requests_per_second"`
	BurstSize            int           `yaml:"burst_size"`
	EnableCaching        bool          `yaml:"enable_caching"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	AllowStaleOnError    bool          `yaml:"allow_stale_on_error"`
	StaleTTL             time.Duration `yaml:"stale_ttl"`
}

// InventoryConfig configures availability.
type InventoryConfig struct {
	BufferStock int `yaml:"buffer_stock"`
}

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// SessionConfig selects the idempotency store.
type SessionConfig struct {
	Backend           string        `yaml:"backend"`
	SQLitePath        string        `yaml:"sqlite_path"`
	IdempotencyWindow time.Duration `yaml:"idempotency_window"`
}

// RedisConfig locates the shared Redis used by the redis backends.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string  `yaml:"addr"`
	InboundRPS   float64 `yaml:"inbound_rps"`
	InboundBurst int     `yaml:"inbound_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used for unset values.
func Default() Config {
	return Config{
		Shopify: ShopifyConfig{APIVersion: "2024-01"},
		Tax:     TaxConfig{IncludeInPrice: true},
		Currency: CurrencyConfig{
			DefaultCurrency: "USD",
		},
		RateLimit: RateLimitConfig{
			MaxRequestsPerSecond: 2.0,
			BurstSize:            10,
			EnableCaching:        true,
			CacheTTL:             5 * time.Minute,
			AllowStaleOnError:    true,
			StaleTTL:             24 * time.Hour,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     30 * time.Second,
		},
		Session: SessionConfig{
			Backend:           BackendMemory,
			SQLitePath:        "sessions.db",
			IdempotencyWindow: 300 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			InboundRPS:   50,
			InboundBurst: 100,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Shopify.ShopDomain, EnvShopDomain)
	set(&c.Shopify.AccessToken, EnvAccessToken)
	set(&c.Shopify.APIVersion, EnvAPIVersion)
	set(&c.Redis.URL, EnvRedisURL)
	set(&c.Log.Level, EnvLogLevel)
}

// Validate reports every invalid value at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Shopify.ShopDomain != "", "shopify.shop_domain is required")
	check(c.Shopify.AccessToken != "", "shopify.access_token is required")
	check(c.Shopify.APIVersion != "", "shopify.api_version is required")

	check(c.Tax.DefaultRate >= 0, "tax.default_rate must not be negative")
	for region, rate := range c.Tax.RegionRates {
		check(rate >= 0, "tax.region_rates.%s must not be negative", region)
	}

	check(len(c.Currency.DefaultCurrency) == 3, "currency.default_currency must be an ISO 4217 code, got %q", c.Currency.DefaultCurrency)
	if len(c.Currency.SupportedCurrencies) > 0 {
		check(c.supports(c.Currency.DefaultCurrency), "currency.default_currency %s is not in supported_currencies", c.Currency.DefaultCurrency)
	}

	check(c.RateLimit.MaxRequestsPerSecond > 0, "rate_limit.max_requests_per_second must be positive")
	check(c.RateLimit.BurstSize >= 1, "rate_limit.burst_size must be at least 1")
	check(c.RateLimit.CacheTTL > 0, "rate_limit.cache_ttl must be positive")
	check(c.RateLimit.StaleTTL >= c.RateLimit.CacheTTL, "rate_limit.stale_ttl must not be shorter than cache_ttl")

	check(c.Inventory.BufferStock >= 0, "inventory.buffer_stock must not be negative")

	check(c.Breaker.FailureThreshold >= 1, "breaker.failure_threshold must be at least 1")
	check(c.Breaker.ResetTimeout > 0, "breaker.reset_timeout must be positive")

	switch c.Session.Backend {
	case BackendMemory:
	case BackendSQLite:
		check(c.Session.SQLitePath != "", "session.sqlite_path is required for the sqlite backend")
	case BackendRedis:
		check(c.Redis.URL != "", "redis.url is required for the redis session backend")
	default:
		check(false, "session.backend must be memory, sqlite or redis, got %q", c.Session.Backend)
	}
	check(c.Session.IdempotencyWindow > 0, "session.idempotency_window must be positive")

	check(c.Server.Addr != "", "server.addr is required")
	check(c.Server.InboundRPS > 0, "server.inbound_rps must be positive")
	check(c.Server.InboundBurst >= 1, "server.inbound_burst must be at least 1")

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) supports(currency string) bool {
	for _, s := range c.Currency.SupportedCurrencies {
		if strings.EqualFold(s, currency) {
			return true
		}
	}
	return false
}

// ShopURL returns the upstream base URL. A domain without scheme is served
// over https.
func (c Config) ShopURL() string {
	domain := strings.TrimRight(c.Shopify.ShopDomain, "/")
	if strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}

// TaxRate returns the default tax rate as a decimal.
func (c Config) TaxRate() decimal.Decimal {
	return decimal.NewFromFloat(c.Tax.DefaultRate)
}

// RegionTaxRates returns the region rates keyed by upper-case country code.
func (c Config) RegionTaxRates() map[string]decimal.Decimal {
	rates := make(map[string]decimal.Decimal, len(c.Tax.RegionRates))
	for region, rate := range c.Tax.RegionRates {
		rates[strings.ToUpper(region)] = decimal.NewFromFloat(rate)
	}
	return rates
}
