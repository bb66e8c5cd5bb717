//go:build integration

package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/internal/testutil"
)

func storeRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	ts := time.Date(2024, 1, 1, 12, 0, 0, 500000000, time.UTC)
	record := Record{
		Response: Response{
			SessionID: "sess_abc",
			ProductID: "1001",
			VariantID: "2001",
			Currency:  "USD",
			Subtotal:  "100.00",
			Tax:       "8.00",
			Total:     "108.00",
			Country:   "US",
		},
		Timestamp: ts,
	}

	if err := store.Set(ctx, "cart-1", record); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, "cart-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Response != record.Response {
		t.Errorf("Response = %+v, want %+v", got.Response, record.Response)
	}
	if diff := got.Timestamp.Sub(ts); diff > time.Millisecond || diff < -time.Millisecond {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}

	record.Response.SessionID = "sess_def"
	if err := store.Set(ctx, "cart-1", record); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, _ = store.Get(ctx, "cart-1")
	if got.Response.SessionID != "sess_def" {
		t.Errorf("overwrite not applied: %q", got.Response.SessionID)
	}
}

func TestSQLiteStore_Integration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	storeRoundTrip(t, store)
	store.Close()

	// records survive a reopen
	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "cart-1")
	if err != nil || got.Response.SessionID != "sess_def" {
		t.Errorf("Get() after reopen = %+v, %v", got, err)
	}
}

func TestRedisStore_Integration(t *testing.T) {
	client := testutil.StartRedis(t)
	storeRoundTrip(t, NewRedisStore(client, time.Hour))
}
