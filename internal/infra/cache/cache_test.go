package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[[]domain.Transaction](5 * time.Minute)
	defer c.Close()

	v, ok := c.Get("snapshot:nobody")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
	if v != nil {
		t.Errorf("expected zero value on miss, got %v", v)
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	c.Set("snapshot:cust-1:all", 1)
	c.Set("snapshot:cust-1:w=a", 2)
	c.Set("snapshot:cust-10:all", 3)
	c.Set("snapshot:cust-2:all", 4)

	if n := c.DeletePrefix("snapshot:cust-1:"); n != 2 {
		t.Errorf("expected 2 deletions, got %d", n)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 remaining entries, got %d", c.Len())
	}
	if _, ok := c.Get("snapshot:cust-10:all"); !ok {
		t.Error("expected a different customer with a shared prefix to survive")
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := cache.New[string](time.Minute)
	c.Close()
	c.Close()

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Error("expected cache to stay usable after Close")
	}
}
