// Package testutil provides testing utilities for the catalog adapter.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// HeaderCallLimit mirrors the upstream call limit header.
const HeaderCallLimit = "X-Shopify-Shop-Api-Call-Limit"

// MockShopResponse defines the behavior for a mock shop endpoint response.
type MockShopResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockShop is a configurable mock commerce API server for testing.
type MockShop struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	LastRequestQuery  string
}

// NewMockShop creates a new mock shop server. Unknown paths answer 404.
func NewMockShop() *MockShop {
	mock := &MockShop{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastRequestQuery = r.URL.RawQuery
		if r.Header.Get("If-None-Match") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":"Not Found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockShop) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockShop) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockShop) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.LastRequestQuery = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockShop) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockShop) SetResponse(path string, resp MockShopResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockShop) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockShop) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockShop) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// NewHealthyResponse creates a 200 OK response with a validator.
func NewHealthyResponse(data string) MockShopResponse {
	return MockShopResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			HeaderCallLimit: "1/40",
			"ETag":          `"test-etag-123"`,
			"Content-Type":  "application/json; charset=utf-8",
		},
	}
}

// NewNotModifiedResponse creates a 304 Not Modified response.
func NewNotModifiedResponse() MockShopResponse {
	return MockShopResponse{
		StatusCode: http.StatusNotModified,
		Headers: map[string]string{
			HeaderCallLimit: "1/40",
		},
	}
}

// NewThrottledResponse creates a 429 Too Many Requests response.
func NewThrottledResponse() MockShopResponse {
	return MockShopResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors":"Exceeded 2 calls per second for api client."}`,
		Headers: map[string]string{
			HeaderCallLimit: "40/40",
			"Retry-After":   "2.0",
			"Content-Type":  "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockShopResponse {
	return MockShopResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":"Internal Server Error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewConditionalHandler creates a handler that answers 304 when the request
// carries etag and the full payload otherwise.
func NewConditionalHandler(etag string, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderCallLimit, "1/40")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}

// GetLastRequestQuery returns the raw query of the most recent request.
func (m *MockShop) GetLastRequestQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestQuery
}
