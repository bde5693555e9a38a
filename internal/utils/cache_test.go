package utils

import (
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	c, err := NewCache(4)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("feed:top", []int{1, 2, 3}, time.Minute)
	if got := c.Get("feed:top"); got == nil {
		t.Fatal("expected cached value")
	}

	now = now.Add(2 * time.Minute)
	if got := c.Get("feed:top"); got != nil {
		t.Errorf("expected expired entry to be dropped, got %v", got)
	}
}

func TestCacheDeleteAndEviction(t *testing.T) {
	c, err := NewCache(2)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)
	c.Set("c", 3, time.Hour)
	if c.Get("a") != nil {
		t.Error("expected least recently used entry to be evicted")
	}

	c.Delete("b", "c")
	if c.Get("b") != nil || c.Get("c") != nil {
		t.Error("expected deleted entries to be gone")
	}
}
