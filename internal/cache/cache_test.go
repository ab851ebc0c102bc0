package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"expenses/internal/core"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLRUCache_ExpiryAndEviction(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](2, time.Minute)
	c.now = clock.now

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	// a is now most recent, so c evicts b
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size = %d, want 2", c.Size())
	}

	clock.t = clock.t.Add(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size after cleanup = %d", c.Size())
	}
}

func TestLRUCache_SetReplacesAndDelete(t *testing.T) {
	c := NewLRUCache[string](0, time.Minute)
	c.Set("k", "old")
	c.Set("k", "new")
	if v, _ := c.Get("k"); v != "new" {
		t.Errorf("Get = %q, want new", v)
	}
	c.Delete("k")
	c.Delete("missing")
	if _, ok := c.Get("k"); ok {
		t.Error("k should be gone")
	}
}

func TestMemory_CopiesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute, nil)
	defer c.Close()

	_, gen, ok := c.Get(ctx)
	if ok {
		t.Fatal("empty cache hit")
	}

	list := []core.Expense{{ID: "1", Description: "Lunch", Amount: 12.5}}
	c.Set(ctx, gen, list)
	list[0].Description = "changed"

	got, _, ok := c.Get(ctx)
	if !ok || got[0].Description != "Lunch" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	got[0].Description = "changed again"
	if again, _, _ := c.Get(ctx); again[0].Description != "Lunch" {
		t.Error("cached entry was mutated through a returned slice")
	}

	c.Invalidate(ctx)
	if _, _, ok := c.Get(ctx); ok {
		t.Error("hit after Invalidate")
	}
}

func TestMemory_SetAfterInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute, nil)
	defer c.Close()

	_, gen, _ := c.Get(ctx)
	// a write lands while the reader is still fetching the old list
	c.Invalidate(ctx)
	c.Set(ctx, gen, []core.Expense{})

	if got, _, ok := c.Get(ctx); ok {
		t.Fatalf("stale list cached: %+v", got)
	}

	_, gen, _ = c.Get(ctx)
	c.Set(ctx, gen, []core.Expense{{ID: "2", Description: "Bus"}})
	if got, _, ok := c.Get(ctx); !ok || len(got) != 1 {
		t.Fatalf("fresh list not cached: %+v, %v", got, ok)
	}
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager(nil)
	m.Register(NewLRUCache[int](1, time.Millisecond))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()

	NewManager(nil).Stop()
}

// Requires a scratch Redis, e.g. REDIS_TEST_URL=redis://localhost:6379/15
func TestRedis_RoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, url, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer c.Close()

	c.Invalidate(ctx)
	_, gen, ok := c.Get(ctx)
	if ok {
		t.Fatal("hit after Invalidate")
	}
	bus := []core.Expense{{ID: "7", Description: "Bus", Amount: 2.75, Date: "2024-03-02", Category: "TRANSPORTATION"}}

	c.Invalidate(ctx)
	c.Set(ctx, gen, bus)
	if _, _, ok := c.Get(ctx); ok {
		t.Fatal("stale Set was stored")
	}

	_, gen, _ = c.Get(ctx)
	c.Set(ctx, gen, bus)
	got, _, ok := c.Get(ctx)
	if !ok || len(got) != 1 || got[0].ID != "7" || got[0].Amount != 2.75 {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not-a-url", time.Minute, nil); err == nil {
		t.Fatal("expected error")
	}
}
