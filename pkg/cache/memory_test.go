package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/lborres/shopfront/core"
)

func TestMemoryStorageSetGetShouldRoundTrip(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	if err := storage.Set(ctx, "cart", []byte(`[{"id":1,"quantity":2}]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := storage.Get(ctx, "cart")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `[{"id":1,"quantity":2}]` {
		t.Errorf("Expected stored cart, got %s", got)
	}
}

func TestMemoryStorageGetMissingShouldReturnErrStorageNotFound(t *testing.T) {
	storage := NewMemoryStorage()

	_, err := storage.Get(context.Background(), "authToken")
	if !errors.Is(err, core.ErrStorageNotFound) {
		t.Errorf("Expected ErrStorageNotFound, got %v", err)
	}
}

func TestMemoryStorageShouldCopyValues(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	value := []byte("abc")

	_ = storage.Set(ctx, "k", value)
	value[0] = 'x'
	got, _ := storage.Get(ctx, "k")
	got[1] = 'y'

	again, _ := storage.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("Expected stored value to be isolated from callers, got %s", again)
	}
}

func TestMemoryStorageStatsShouldCountOperations(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	_ = storage.Set(ctx, "authToken", []byte("t"))
	_, _ = storage.Get(ctx, "authToken")
	_, _ = storage.Get(ctx, "cart")
	_ = storage.Delete(ctx, "authToken")
	_ = storage.Delete(ctx, "authToken")

	stats := storage.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 || stats.Deletes != 1 || stats.Size != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestMemoryStorageClearShouldRemoveEverything(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	_ = storage.Set(ctx, "authToken", []byte("t"))
	_ = storage.Set(ctx, "cart", []byte("[]"))

	storage.Clear()

	if storage.Len() != 0 {
		t.Errorf("Expected empty storage, got %d entries", storage.Len())
	}
}
