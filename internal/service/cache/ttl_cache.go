package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	v   []byte
	exp time.Time
}

// TTLCache is an in-process BytesCache. When maxEntries is reached, expired entries are swept
// and, if still full, the entry closest to expiry is evicted.
type TTLCache struct {
	mu         sync.RWMutex
	m          map[string]entry
	maxEntries int
	now        func() time.Time
}

func NewTTLCache(maxEntries int) *TTLCache {
	return &TTLCache{m: make(map[string]entry), maxEntries: maxEntries, now: time.Now}
}

func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && c.maxEntries > 0 && len(c.m) >= c.maxEntries {
		c.evictLocked()
	}
	c.m[key] = entry{v: value, exp: exp}
	return nil
}

func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *TTLCache) evictLocked() {
	now := c.now()
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
		}
	}
	if len(c.m) < c.maxEntries {
		return
	}
	var (
		victim string
		soon   time.Time
	)
	for k, e := range c.m {
		if victim == "" || (!e.exp.IsZero() && (soon.IsZero() || e.exp.Before(soon))) {
			victim, soon = k, e.exp
		}
	}
	delete(c.m, victim)
}
