package ratelimit

import (
	"testing"
	"time"
)

func TestAllowRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("ip"); !ok {
			t.Fatalf("request %d: expected burst of 2", i+1)
		}
	}
	ok, wait := l.Allow("ip")
	if ok || wait != time.Second {
		t.Fatalf("expected rejection with 1s wait, got %v %v", ok, wait)
	}
	if ok, _ := l.Allow("other"); !ok {
		t.Fatalf("keys must not share buckets")
	}
	now = now.Add(1500 * time.Millisecond)
	if ok, _ := l.Allow("ip"); !ok {
		t.Fatalf("expected refill after 1.5s")
	}
}

func TestNoRefillHasNoWait(t *testing.T) {
	l := New(1, 0)
	l.Allow("k")
	if ok, wait := l.Allow("k"); ok || wait != 0 {
		t.Fatalf("expected rejection without wait, got %v %v", ok, wait)
	}
}

func TestZeroCapacityDisables(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow("k"); !ok {
			t.Fatalf("zero capacity must not limit")
		}
	}
	if l.Len() != 0 {
		t.Fatalf("disabled limiter must not track keys")
	}
}

func TestIdleBucketsAreSwept(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(5, 1)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	now = now.Add(defaultIdle + time.Second)
	l.Allow("c")
	if l.Len() != 1 {
		t.Fatalf("expected idle buckets dropped, %d left", l.Len())
	}
}
