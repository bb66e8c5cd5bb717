package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/internal/testutil"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/client"
)

func TestHTTPTransport_RoundTrip(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()

	mock.SetResponse("/admin/api/2024-01/products.json", testutil.NewHealthyResponse(`{"products":[]}`))

	transport := client.NewHTTPTransport(mock.URL()+"/", "shpat_test")
	resp, err := transport.RoundTrip(context.Background(), client.Request{
		Endpoint: "/admin/api/2024-01/products.json",
		Query:    url.Values{"limit": []string{"5"}},
		Header:   http.Header{"If-None-Match": []string{`"abc"`}},
	})
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"products":[]}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if resp.Header.Get("ETag") != `"test-etag-123"` {
		t.Errorf("ETag = %q", resp.Header.Get("ETag"))
	}

	header := mock.GetLastRequestHeader()
	if header.Get(client.HeaderAccessToken) != "shpat_test" {
		t.Errorf("access token header = %q", header.Get(client.HeaderAccessToken))
	}
	if header.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", header.Get("Accept"))
	}
	if mock.GetConditionalCount() != 1 {
		t.Errorf("conditional requests = %d, want 1", mock.GetConditionalCount())
	}
	if mock.GetLastRequestQuery() != "limit=5" {
		t.Errorf("query = %q, want limit=5", mock.GetLastRequestQuery())
	}
}

func TestHTTPTransport_ErrorStatusIsResponse(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()

	transport := client.NewHTTPTransport(mock.URL(), "")
	resp, err := transport.RoundTrip(context.Background(), client.Request{Endpoint: "/missing.json"})
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()

	resp := testutil.NewHealthyResponse("{}")
	resp.Delay = 200 * time.Millisecond
	mock.SetResponse("/slow.json", resp)

	transport := client.NewHTTPTransport(mock.URL(), "")
	transport.SetHTTPClient(&http.Client{Timeout: 20 * time.Millisecond})

	if _, err := transport.RoundTrip(context.Background(), client.Request{Endpoint: "/slow.json"}); err == nil {
		t.Fatal("RoundTrip() should time out")
	}
}

func TestClient_EndToEndWithMockShop(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()

	mock.SetHandler(productEndpoint, testutil.NewConditionalHandler(`"etag-1"`, `{"product":{"id":1}}`))

	c, err := client.New(client.DefaultConfig(client.NewHTTPTransport(mock.URL(), "token")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	resp, err := c.Get(ctx, productEndpoint, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(resp.Body) != `{"product":{"id":1}}` {
		t.Errorf("Body = %q", resp.Body)
	}

	if _, err := c.Get(ctx, "/admin/api/2024-01/products/404.json", nil); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if mock.GetRequestCount() != 2 {
		t.Errorf("request count = %d, want 2", mock.GetRequestCount())
	}
}
