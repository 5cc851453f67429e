package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/sirvig/wheel-analyzer-sub001/internal/interfaces"
)

func TestCacheStorage_SetAndGet(t *testing.T) {
	db := newTestDB(t)
	cache := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	payload := []byte(`{"Symbol":"AAPL","EPS":"5.00"}`)
	if err := cache.Set(ctx, "OVERVIEW:AAPL", payload, time.Hour); err != nil {
		t.Fatalf("Failed to set cache entry: %v", err)
	}

	got, err := cache.Get(ctx, "OVERVIEW:AAPL")
	if err != nil {
		t.Fatalf("Failed to get cache entry: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Payload mismatch: got %s", got)
	}
}

func TestCacheStorage_MissingKeyIsCacheMiss(t *testing.T) {
	db := newTestDB(t)
	cache := NewCacheStorage(db, arbor.NewLogger())

	_, err := cache.Get(context.Background(), "OVERVIEW:MISSING")
	if err != interfaces.ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestCacheStorage_ExpiredEntryIsCacheMiss(t *testing.T) {
	db := newTestDB(t)
	cache := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	if err := cache.Set(ctx, "OVERVIEW:AAPL", []byte("stale"), 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	_, err := cache.Get(ctx, "OVERVIEW:AAPL")
	if err != interfaces.ErrCacheMiss {
		t.Errorf("Expected expired entry to read as a miss, got %v", err)
	}
}

func TestCacheStorage_SetReplacesEntry(t *testing.T) {
	db := newTestDB(t)
	cache := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	if err := cache.Set(ctx, "OVERVIEW:AAPL", []byte("old"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := cache.Set(ctx, "OVERVIEW:AAPL", []byte("new"), time.Hour); err != nil {
		t.Fatal(err)
	}

	got, err := cache.Get(ctx, "OVERVIEW:AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("Expected replaced payload, got %s", got)
	}
}

func TestCacheStorage_ClearByPrefix(t *testing.T) {
	db := newTestDB(t)
	cache := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	entries := map[string]string{
		"OVERVIEW:AAPL":  "a",
		"OVERVIEW:MSFT":  "b",
		"CASH_FLOW:AAPL": "c",
	}
	for key, value := range entries {
		if err := cache.Set(ctx, key, []byte(value), time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := cache.Clear(ctx, "OVERVIEW:")
	if err != nil {
		t.Fatalf("Failed to clear cache: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 entries cleared, got %d", deleted)
	}

	if _, err := cache.Get(ctx, "OVERVIEW:AAPL"); err != interfaces.ErrCacheMiss {
		t.Error("Expected OVERVIEW:AAPL to be gone")
	}
	if _, err := cache.Get(ctx, "CASH_FLOW:AAPL"); err != nil {
		t.Errorf("Expected CASH_FLOW:AAPL to survive, got %v", err)
	}
}

func TestCacheStorage_ClearAll(t *testing.T) {
	db := newTestDB(t)
	cache := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for _, key := range []string{"OVERVIEW:AAPL", "CASH_FLOW:AAPL"} {
		if err := cache.Set(ctx, key, []byte("x"), time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := cache.Clear(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 entries cleared, got %d", deleted)
	}
}
