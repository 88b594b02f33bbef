package cache

import (
	"context"
	"testing"
	"time"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache(0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.SetBytes(ctx, "a", []byte("1"), time.Minute)
	if b, ok, _ := c.GetBytes(ctx, "a"); !ok || string(b) != "1" {
		t.Fatalf("expected hit")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.GetBytes(ctx, "a"); ok {
		t.Fatalf("expected expiry")
	}
}

func TestTTLCacheEvictsWhenFull(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache(2)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.SetBytes(ctx, "short", []byte("s"), time.Second)
	_ = c.SetBytes(ctx, "long", []byte("l"), time.Hour)
	_ = c.SetBytes(ctx, "new", []byte("n"), time.Hour)

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok, _ := c.GetBytes(ctx, "short"); ok {
		t.Fatalf("entry closest to expiry should be evicted")
	}
	if _, ok, _ := c.GetBytes(ctx, "new"); !ok {
		t.Fatalf("new entry missing")
	}
}

func TestKeyStable(t *testing.T) {
	a := Key("analyze", "EURUSD", "1m", "7")
	b := Key("analyze", "EURUSD", "1m", "7")
	if a != b || a == Key("analyze", "EURUSD", "1m", "8") {
		t.Fatalf("unexpected keys %s %s", a, b)
	}
}
