package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/client"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
	"github.com/Sternrassler/ucp-catalog-adapter/pkg/normalize"
	"github.com/shopspring/decimal"
)

type fakeProducts struct {
	mu       sync.Mutex
	products map[string]*model.UpstreamProduct
	err      error
	calls    int
}

func (f *fakeProducts) Product(_ context.Context, id string) (*model.UpstreamProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, client.ErrNotFound)
	}
	return p, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleProducts() *fakeProducts {
	return &fakeProducts{products: map[string]*model.UpstreamProduct{
		"1001": {
			ID:    "1001",
			Title: "Trail Runner",
			Variants: []model.UpstreamVariant{
				{ID: "2001", Title: "Small", Price: model.Money{Amount: "100.00"}},
				{ID: "2002", Title: "Large", Price: model.Money{Amount: "120.00", CurrencyCode: "EUR"}},
			},
		},
		"empty": {ID: "empty", Title: "No Variants"},
	}}
}

func newTestService(t *testing.T, products ProductSource, normCfg normalize.Config) (*Service, *testClock, *MemoryStore) {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	svc, err := NewService(Config{
		Store:       store,
		Products:    products,
		Normalizer:  normalize.New(normCfg),
		RegionRates: map[string]decimal.Decimal{"de": decimal.RequireFromString("0.19")},
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc.WithClock(clock.Now), clock, store
}

func taxExcluded() normalize.Config {
	return normalize.Config{DefaultCurrency: "USD", TaxRate: decimal.RequireFromString("0.08")}
}

func TestNewService_Validation(t *testing.T) {
	n := normalize.New(normalize.DefaultConfig())
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no store", Config{Products: sampleProducts(), Normalizer: n}},
		{"no products", Config{Store: NewMemoryStore(), Normalizer: n}},
		{"no normalizer", Config{Store: NewMemoryStore(), Products: sampleProducts()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.cfg); err == nil {
				t.Error("NewService() should fail")
			}
		})
	}
}

func TestCreate_Pricing(t *testing.T) {
	tests := []struct {
		name         string
		normCfg      normalize.Config
		req          Request
		wantVariant  string
		wantCurrency string
		wantSubtotal string
		wantTax      string
		wantTotal    string
		wantCountry  string
	}{
		{
			name:        "default variant and rate",
			normCfg:     taxExcluded(),
			req:         Request{ProductID: "1001", Quantity: 2},
			wantVariant: "2001", wantCurrency: "USD",
			wantSubtotal: "200.00", wantTax: "16.00", wantTotal: "216.00",
		},
		{
			name:        "region rate by upper-cased country",
			normCfg:     taxExcluded(),
			req:         Request{ProductID: "1001", Quantity: 1, ShippingAddress: &Address{CountryCode: "de"}},
			wantVariant: "2001", wantCurrency: "USD",
			wantSubtotal: "100.00", wantTax: "19.00", wantTotal: "119.00", wantCountry: "DE",
		},
		{
			name:        "unknown country uses default rate",
			normCfg:     taxExcluded(),
			req:         Request{ProductID: "1001", Quantity: 1, ShippingAddress: &Address{CountryCode: "fr"}},
			wantVariant: "2001", wantCurrency: "USD",
			wantSubtotal: "100.00", wantTax: "8.00", wantTotal: "108.00", wantCountry: "FR",
		},
		{
			name:        "explicit variant keeps its currency",
			normCfg:     taxExcluded(),
			req:         Request{ProductID: "1001", VariantID: "2002", Quantity: 3},
			wantVariant: "2002", wantCurrency: "EUR",
			wantSubtotal: "360.00", wantTax: "28.80", wantTotal: "388.80",
		},
		{
			name:        "tax included",
			normCfg:     normalize.DefaultConfig(),
			req:         Request{ProductID: "1001", Quantity: 1, ShippingAddress: &Address{CountryCode: "DE"}},
			wantVariant: "2001", wantCurrency: "USD",
			wantSubtotal: "100.00", wantTax: "0.00", wantTotal: "100.00", wantCountry: "DE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, sampleProducts(), tt.normCfg)

			resp, err := svc.Create(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			if resp.VariantID != tt.wantVariant || resp.Currency != tt.wantCurrency {
				t.Errorf("variant/currency = %s/%s, want %s/%s", resp.VariantID, resp.Currency, tt.wantVariant, tt.wantCurrency)
			}
			if resp.Subtotal != tt.wantSubtotal || resp.Tax != tt.wantTax || resp.Total != tt.wantTotal {
				t.Errorf("amounts = %s/%s/%s, want %s/%s/%s",
					resp.Subtotal, resp.Tax, resp.Total, tt.wantSubtotal, tt.wantTax, tt.wantTotal)
			}
			if resp.Country != tt.wantCountry {
				t.Errorf("Country = %q, want %q", resp.Country, tt.wantCountry)
			}
			if resp.ProductID != "1001" || resp.Status != "" {
				t.Errorf("ProductID/Status = %q/%q", resp.ProductID, resp.Status)
			}
		})
	}
}

func TestCreate_Idempotency(t *testing.T) {
	products := sampleProducts()
	svc, clock, _ := newTestService(t, products, taxExcluded())
	ctx := context.Background()
	req := Request{ProductID: "1001", Quantity: 1, IdempotencyKey: "idem-1"}

	first, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	clock.Advance(299 * time.Second)
	second, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if *second != *first {
		t.Errorf("replay within window = %+v, want %+v", second, first)
	}
	if products.calls != 1 {
		t.Errorf("product fetches = %d, want 1", products.calls)
	}

	clock.Advance(2 * time.Second)
	third, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if third.SessionID == first.SessionID {
		t.Error("request after the window should get a new session")
	}

	// the new session restarts the window
	clock.Advance(10 * time.Second)
	fourth, _ := svc.Create(ctx, req)
	if fourth.SessionID != third.SessionID {
		t.Error("replay should return the most recent session")
	}
}

func TestCreate_CartTokenWins(t *testing.T) {
	svc, _, store := newTestService(t, sampleProducts(), taxExcluded())
	ctx := context.Background()

	resp, err := svc.Create(ctx, Request{ProductID: "1001", Quantity: 1, CartToken: "cart-9", IdempotencyKey: "idem-9"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := store.Get(ctx, "idem-9"); !errors.Is(err, ErrNotFound) {
		t.Error("response should be stored under the cart token only")
	}
	record, err := store.Get(ctx, "cart-9")
	if err != nil || record.Response.SessionID != resp.SessionID {
		t.Errorf("stored record = %+v, %v", record, err)
	}
}

func TestCreate_WithoutKeyNotStored(t *testing.T) {
	svc, _, store := newTestService(t, sampleProducts(), taxExcluded())
	ctx := context.Background()

	a, _ := svc.Create(ctx, Request{ProductID: "1001", Quantity: 1})
	b, _ := svc.Create(ctx, Request{ProductID: "1001", Quantity: 1})
	if a.SessionID == b.SessionID {
		t.Error("unkeyed requests should get distinct sessions")
	}
	if len(store.records) != 0 {
		t.Errorf("unkeyed sessions should not be stored, got %d", len(store.records))
	}
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing product id", Request{Quantity: 1}, ErrMissingProduct},
		{"zero quantity", Request{ProductID: "1001"}, ErrInvalidQuantity},
		{"negative quantity", Request{ProductID: "1001", Quantity: -1}, ErrInvalidQuantity},
		{"no variants", Request{ProductID: "empty", Quantity: 1}, ErrNoVariants},
		{"unknown variant", Request{ProductID: "1001", VariantID: "999", Quantity: 1}, ErrVariantNotFound},
		{"unknown product", Request{ProductID: "404", Quantity: 1}, client.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, sampleProducts(), taxExcluded())
			if _, err := svc.Create(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreate_Maintenance(t *testing.T) {
	products := &fakeProducts{err: fmt.Errorf("fetch: %w", client.ErrCircuitOpen)}
	svc, _, store := newTestService(t, products, taxExcluded())

	resp, err := svc.Create(context.Background(), Request{ProductID: "1001", Quantity: 1, IdempotencyKey: "k"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if resp.Status != StatusMaintenance || resp.SessionID != "" {
		t.Errorf("Create() = %+v, want maintenance status", resp)
	}
	if _, err := store.Get(context.Background(), "k"); !errors.Is(err, ErrNotFound) {
		t.Error("maintenance responses should not be stored")
	}
}

func TestNewSessionID(t *testing.T) {
	pattern := regexp.MustCompile(`^sess_[0-9a-f]{32}$`)

	a, b := NewSessionID(), NewSessionID()
	if !pattern.MatchString(a) {
		t.Errorf("NewSessionID() = %q, want sess_<32 hex>", a)
	}
	if a == b {
		t.Error("session ids should be unique")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = store.Set(ctx, "k", Record{Response: Response{SessionID: "sess_1"}, Timestamp: ts})
	_ = store.Set(ctx, "k", Record{Response: Response{SessionID: "sess_2"}, Timestamp: ts})

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Response.SessionID != "sess_2" || !got.Timestamp.Equal(ts) {
		t.Errorf("Get() = %+v, want last write", got)
	}
}
