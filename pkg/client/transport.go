package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HeaderAccessToken carries the shop's API access token.
const HeaderAccessToken = "X-Shopify-Access-Token"

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 30 * time.Second

// Request is an upstream call.
type Request struct {
	Method   string
	Endpoint string
	Header   http.Header
	Query    url.Values
	Body     []byte
}

// Response is a fully read upstream answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs upstream calls. Non-2xx statuses are returned as
// responses; errors are reserved for calls that produced no response.
type Transport interface {
	RoundTrip(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport talks to a shop over HTTPS.
type HTTPTransport struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewHTTPTransport creates a transport for baseURL (e.g.,
// "https://example.myshopify.com").
func NewHTTPTransport(baseURL, accessToken string) *HTTPTransport {
	return &HTTPTransport{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// RoundTrip executes req and reads the whole response body.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req Request) (*Response, error) {
	target := t.baseURL + req.Endpoint
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if t.accessToken != "" {
		httpReq.Header.Set(HeaderAccessToken, t.accessToken)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
