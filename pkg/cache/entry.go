package cache

import (
	"time"
)

// CacheEntry represents a cached upstream response.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// ETag is the validator for conditional requests (If-None-Match)
	ETag string `json:"etag,omitempty"`

	// WrittenAt is when the entry was stored
	WrittenAt time.Time `json:"written_at"`
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt)
}

// IsFresh returns true while the entry is within ttl.
func (e *CacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) <= ttl
}

// IsUsable returns true while the entry is within the stale window.
func (e *CacheEntry) IsUsable(now time.Time, staleTTL time.Duration) bool {
	return e.Age(now) <= staleTTL
}
