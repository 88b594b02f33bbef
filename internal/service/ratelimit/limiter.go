// Package ratelimit throttles analysis requests per client with token buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

const (
	defaultIdle = 10 * time.Minute
	sweepEvery  = time.Minute
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter keeps one bucket of the same capacity and refill rate per key. Buckets untouched for
// the idle period are dropped. A capacity of 0 disables limiting.
type Limiter struct {
	capacity float64
	refill   float64 // tokens per second
	idle     time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func New(capacity int, refillPerSec float64) *Limiter {
	if refillPerSec < 0 {
		refillPerSec = 0
	}
	return &Limiter{
		capacity: float64(capacity),
		refill:   refillPerSec,
		idle:     defaultIdle,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// Enabled reports whether the limiter ever rejects.
func (l *Limiter) Enabled() bool { return l != nil && l.capacity > 0 }

// Allow takes one token for key. When none is left it returns false and how long until one is
// available; the wait is 0 when the bucket never refills.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.buckets[key] = b
	}
	if dt := now.Sub(b.last).Seconds(); dt > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+dt*l.refill)
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if l.refill == 0 {
		return false, 0
	}
	wait := time.Duration((1 - b.tokens) / l.refill * float64(time.Second))
	return false, wait
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepEvery {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.last) >= l.idle {
			delete(l.buckets, k)
		}
	}
}
