package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Defaults for the freshness windows.
const (
	DefaultTTL      = 5 * time.Minute
	DefaultStaleTTL = 24 * time.Hour
)

// Config holds the freshness windows.
type Config struct {
	// TTL is how long an entry is served without contacting the upstream.
	TTL time.Duration

	// StaleTTL is how long an entry may serve as a fallback when the
	// upstream fails. Values below TTL are raised to TTL.
	StaleTTL time.Duration
}

// DefaultConfig returns the default freshness windows.
func DefaultConfig() Config {
	return Config{
		TTL:      DefaultTTL,
		StaleTTL: DefaultStaleTTL,
	}
}

// Manager applies TTL and stale-window policy on top of a Store.
type Manager struct {
	store    Store
	ttl      time.Duration
	staleTTL time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewManager creates a cache manager over store.
func NewManager(store Store, cfg Config) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.StaleTTL < cfg.TTL {
		cfg.StaleTTL = cfg.TTL
	}
	return &Manager{
		store:    store,
		ttl:      cfg.TTL,
		staleTTL: cfg.StaleTTL,
		now:      time.Now,
		logger:   log.With().Str("component", "cache").Logger(),
	}
}

// WithClock replaces the clock used for write stamps and freshness checks.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithLogger replaces the component logger.
func (m *Manager) WithLogger(logger zerolog.Logger) *Manager {
	m.logger = logger
	return m
}

// TTL returns the freshness window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// StaleTTL returns the fallback window.
func (m *Manager) StaleTTL() time.Duration {
	return m.staleTTL
}

// Get returns the payload for key if it is fresh.
func (m *Manager) Get(ctx context.Context, key Key) ([]byte, bool) {
	entry, ok := m.load(ctx, key)
	if !ok || !entry.IsFresh(m.now(), m.ttl) {
		CacheMisses.Inc()
		return nil, false
	}

	CacheHits.WithLabelValues("fresh").Inc()
	m.logger.Debug().Str("key", key.String()).Msg("Cache hit")
	return entry.Data, true
}

// GetStale returns the payload for key if it is within the stale window.
// Fresh entries are returned as well.
func (m *Manager) GetStale(ctx context.Context, key Key) ([]byte, bool) {
	entry, ok := m.load(ctx, key)
	if !ok {
		return nil, false
	}

	CacheHits.WithLabelValues("stale").Inc()
	return entry.Data, true
}

// GetETag returns the last known validator for key, or "" when the key is
// absent or has no validator.
func (m *Manager) GetETag(ctx context.Context, key Key) string {
	entry, ok := m.load(ctx, key)
	if !ok {
		return ""
	}
	return entry.ETag
}

// Set stores data for key stamped with the current time. The previous entry
// is replaced entirely, so an empty etag clears a former validator.
func (m *Manager) Set(ctx context.Context, key Key, data []byte, etag string) error {
	entry := &CacheEntry{
		Data:      data,
		ETag:      etag,
		WrittenAt: m.now(),
	}

	if err := m.store.Save(ctx, key.String(), entry); err != nil {
		CacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("save cache entry: %w", err)
	}

	m.logger.Debug().
		Str("key", key.String()).
		Str("etag", etag).
		Dur("ttl", m.ttl).
		Msg("Cached response")
	return nil
}

// Invalidate removes key.
func (m *Manager) Invalidate(ctx context.Context, key Key) error {
	if err := m.store.Delete(ctx, key.String()); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// load returns the entry for key if it is still within the stale window.
// Entries past the window are reported as absent and left for the next Set
// to replace. Store errors are logged and treated as misses.
func (m *Manager) load(ctx context.Context, key Key) (*CacheEntry, bool) {
	k := key.String()

	entry, err := m.store.Load(ctx, k)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			CacheErrors.WithLabelValues("load").Inc()
			m.logger.Warn().Err(err).Str("key", k).Msg("Cache load error")
		}
		return nil, false
	}

	if !entry.IsUsable(m.now(), m.staleTTL) {
		return nil, false
	}

	return entry, true
}
