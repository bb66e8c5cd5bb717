package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/Sternrassler/ucp-catalog-adapter/internal/testutil"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/catalog"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/client"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/normalize"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/ratelimit"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/shopify"
)

func productPath(id string) string {
	return shopify.ProductEndpoint(testutil.APIVersion, id)
}

func productJSON(id string) string {
	return fmt.Sprintf(`{"product":{"id":%s,"title":"Product %s","variants":[{"id":9%s,"price":"10.00"}]}}`, id, id, id)
}

func newTestService(t *testing.T, mock *testutil.MockShop) *catalog.Service {
	t.Helper()

	limiter, err := ratelimit.NewTokenBucket(1000, 100)
	if err != nil {
		t.Fatalf("NewTokenBucket() error = %v", err)
	}

	cfg := client.DefaultConfig(client.NewHTTPTransport(mock.URL(), "token"))
	cfg.Limiter = limiter
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	svc, err := catalog.New(catalog.Config{
		Client:         c,
		Normalizer:     normalize.New(normalize.DefaultConfig()),
		APIVersion:     testutil.APIVersion,
		MaxConcurrency: 3,
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return svc
}

func TestNew_Validation(t *testing.T) {
	if _, err := catalog.New(catalog.Config{Normalizer: normalize.New(normalize.DefaultConfig())}); err == nil {
		t.Error("New() without client should fail")
	}
	c, _ := client.New(client.DefaultConfig(testutil.NewReplayTransport()))
	if _, err := catalog.New(catalog.Config{Client: c}); err == nil {
		t.Error("New() without normalizer should fail")
	}
}

func TestService_Listing(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()
	mock.SetResponse(productPath("1001"), testutil.NewHealthyResponse(testutil.ProductJSON))

	svc := newTestService(t, mock)
	ctx := context.Background()

	listing, err := svc.Listing(ctx, "1001")
	if err != nil {
		t.Fatalf("Listing() error = %v", err)
	}
	if listing.ProductID != "1001" || listing.Name != "Trail Runner" {
		t.Errorf("Listing() = %s %q", listing.ProductID, listing.Name)
	}
	if len(listing.Offers) != 2 {
		t.Fatalf("len(Offers) = %d, want 2", len(listing.Offers))
	}
	if listing.Offers[0].PriceSpecification.Price != "100.00" {
		t.Errorf("first offer price = %s", listing.Offers[0].PriceSpecification.Price)
	}

	listings, err := svc.Listings(ctx, "1001")
	if err != nil {
		t.Fatalf("Listings() error = %v", err)
	}
	if len(listings) != 2 || listings[1].ProductID != "1001#2002" {
		t.Errorf("Listings() ids = %v", listingIDs(listings))
	}

	// second and third call were served from cache
	if mock.GetRequestCount() != 1 {
		t.Errorf("request count = %d, want 1", mock.GetRequestCount())
	}
}

func TestService_ListingNotFound(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()

	svc := newTestService(t, mock)
	if _, err := svc.Listing(context.Background(), "404"); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Listing() error = %v, want ErrNotFound", err)
	}
}

func TestService_InvalidPayload(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()
	mock.SetResponse(productPath("7"), testutil.NewHealthyResponse(`{"product":{"id":7}}`))

	svc := newTestService(t, mock)
	if _, err := svc.Product(context.Background(), "7"); !errors.Is(err, shopify.ErrInvalidPayload) {
		t.Errorf("Product() error = %v, want ErrInvalidPayload", err)
	}
}

func TestService_ListingsPage(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()
	mock.SetResponse(shopify.ProductsEndpoint(testutil.APIVersion), testutil.NewHealthyResponse(testutil.ProductsJSON))

	svc := newTestService(t, mock)

	listings, err := svc.ListingsPage(context.Background(), 25)
	if err != nil {
		t.Fatalf("ListingsPage() error = %v", err)
	}
	if got := listingIDs(listings); got != "1001,1002" {
		t.Errorf("ListingsPage() ids = %s, want 1001,1002", got)
	}
	if q := mock.GetLastRequestQuery(); q != "limit=25" {
		t.Errorf("query = %q, want limit=25", q)
	}
}

func TestService_ProductByHandle(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()
	mock.SetHandler(shopify.ProductsEndpoint(testutil.APIVersion), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("handle") == "trail-runner" {
			w.Write([]byte(`{"products":[{"id":1001,"title":"Trail Runner","handle":"trail-runner","variants":[{"id":2001,"price":"100.00"}]}]}`))
			return
		}
		w.Write([]byte(`{"products":[]}`))
	})

	svc := newTestService(t, mock)
	ctx := context.Background()

	product, err := svc.ProductByHandle(ctx, "trail-runner")
	if err != nil {
		t.Fatalf("ProductByHandle() error = %v", err)
	}
	if product.ID != "1001" {
		t.Errorf("ID = %s, want 1001", product.ID)
	}

	if _, err := svc.ProductByHandle(ctx, "missing"); !errors.Is(err, catalog.ErrProductNotFound) {
		t.Errorf("ProductByHandle(missing) error = %v, want ErrProductNotFound", err)
	}
}

func TestService_Invalidate(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()
	mock.SetResponse(productPath("1001"), testutil.NewHealthyResponse(testutil.ProductJSON))
	mock.SetResponse(productPath("1002"), testutil.NewHealthyResponse(productJSON("1002")))

	svc := newTestService(t, mock)
	ctx := context.Background()

	svc.Listing(ctx, "1001")
	svc.Listing(ctx, "1002")

	if err := svc.Invalidate(ctx, "1001"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	svc.Listing(ctx, "1001")
	svc.Listing(ctx, "1002")
	if mock.GetRequestCount() != 3 {
		t.Errorf("request count after Invalidate = %d, want 3", mock.GetRequestCount())
	}

	if err := svc.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll() error = %v", err)
	}
	svc.Listing(ctx, "1001")
	svc.Listing(ctx, "1002")
	if mock.GetRequestCount() != 5 {
		t.Errorf("request count after InvalidateAll = %d, want 5", mock.GetRequestCount())
	}
}

func TestService_ListingsByIDs(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()

	ids := []string{"1", "2", "3", "4", "5", "6", "7"}
	for _, id := range ids {
		mock.SetResponse(productPath(id), testutil.NewHealthyResponse(productJSON(id)))
	}

	svc := newTestService(t, mock)

	listings, err := svc.ListingsByIDs(context.Background(), ids)
	if err != nil {
		t.Fatalf("ListingsByIDs() error = %v", err)
	}
	if got := listingIDs(listings); got != strings.Join(ids, ",") {
		t.Errorf("ListingsByIDs() ids = %s, want input order", got)
	}
}

func TestService_ListingsByIDsPartial(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()
	mock.SetResponse(productPath("1"), testutil.NewHealthyResponse(productJSON("1")))
	mock.SetResponse(productPath("3"), testutil.NewHealthyResponse(productJSON("3")))

	svc := newTestService(t, mock)

	listings, err := svc.ListingsByIDs(context.Background(), []string{"1", "2", "3"})
	if err == nil {
		t.Fatal("ListingsByIDs() should report the missing product")
	}
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("error = %v, want it to wrap ErrNotFound", err)
	}
	if got := listingIDs(listings); got != "1,3" {
		t.Errorf("partial ids = %s, want 1,3", got)
	}
}

func TestService_ListingsByIDsCancelled(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()

	svc := newTestService(t, mock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	listings, err := svc.ListingsByIDs(ctx, []string{"1", "2"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(listings) != 0 {
		t.Errorf("len(listings) = %d, want 0", len(listings))
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("request count = %d, want 0", mock.GetRequestCount())
	}
}

func TestService_ListingsByIDsEmpty(t *testing.T) {
	mock := testutil.NewMockShop()
	defer mock.Close()

	listings, err := newTestService(t, mock).ListingsByIDs(context.Background(), nil)
	if err != nil || listings != nil {
		t.Errorf("ListingsByIDs(nil) = %v, %v", listings, err)
	}
}

func listingIDs(listings []model.Listing) string {
	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.ProductID
	}
	return strings.Join(ids, ",")
}
