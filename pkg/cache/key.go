package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// Key identifies a cached upstream response.
type Key struct {
	// Method is the HTTP method; empty means GET
	Method string

	// Endpoint is the upstream path (e.g., "/admin/api/2024-01/products/1.json")
	Endpoint string

	// Query are the query parameters
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: METHOD:endpoint[?sorted query]
//
// Example:
//
//	GET:/admin/api/2024-01/products.json?limit=50
func (k Key) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(':')
	b.WriteString(k.Endpoint)

	// Encode sorts by parameter name.
	if len(k.Query) > 0 {
		b.WriteByte('?')
		b.WriteString(k.Query.Encode())
	}

	return b.String()
}
