//go:build integration

package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/internal/testutil"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/cache"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/client"
)

func TestClient_Integration_SharedRedisCache(t *testing.T) {
	redisClient := testutil.StartRedis(t)

	mock := testutil.NewMockShop()
	defer mock.Close()
	mock.SetHandler(productEndpoint, testutil.NewConditionalHandler(`"etag-1"`, `{"product":{"id":1}}`))

	newClient := func() *client.Client {
		store := cache.NewRedisStore(redisClient, time.Hour)
		c, err := client.New(client.Config{
			Transport:         client.NewHTTPTransport(mock.URL(), "token"),
			Cache:             cache.NewManager(store, cache.DefaultConfig()),
			AllowStaleOnError: true,
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return c
	}

	ctx := context.Background()
	first, second := newClient(), newClient()

	if _, err := first.Get(ctx, productEndpoint, nil); err != nil {
		t.Fatalf("first.Get() error = %v", err)
	}

	resp, err := second.Get(ctx, productEndpoint, nil)
	if err != nil {
		t.Fatalf("second.Get() error = %v", err)
	}
	if string(resp.Body) != `{"product":{"id":1}}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("instances sharing Redis should hit the upstream once, got %d", mock.GetRequestCount())
	}
}
