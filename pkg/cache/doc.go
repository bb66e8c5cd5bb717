// Package cache provides the conditional response cache used in front of the
// commerce API.
//
// The cache separates policy from storage:
//
// - Manager applies the freshness rules. An entry written at T is fresh
//   until T+TTL, usable as a degraded fallback until T+StaleTTL, and
//   logically absent afterwards. Expiry is evaluated lazily on read.
// - Store persists entries. MemoryStore keeps them in process; RedisStore
//   shares them between adapter instances.
//
// # Basic Usage
//
//	manager := cache.NewManager(cache.NewMemoryStore(), cache.DefaultConfig())
//
//	key := cache.Key{
//		Method:   http.MethodGet,
//		Endpoint: "/admin/api/2024-01/products/123.json",
//	}
//
//	if data, ok := manager.Get(ctx, key); ok {
//		// fresh hit
//	}
//
// # Conditional Requests
//
//	if etag := manager.GetETag(ctx, key); etag != "" {
//		cache.AddConditionalHeaders(req.Header, etag)
//		// a 304 answer means the cached payload is still current
//	}
//
// # Metrics
//
//   - ucp_cache_hits_total{kind="fresh|stale"} - Cache hits
//   - ucp_cache_misses_total - Cache misses
//   - ucp_304_responses_total - Conditional request successes
//   - ucp_conditional_requests_total - Requests sent with If-None-Match
//   - ucp_cache_errors_total{operation} - Store operation errors
package cache
