package cache

import (
    "sync"
    "time"
)

// Cache is the shared contract for the quote and historical caches.
// Get treats expired entries as misses; GetStale returns whatever is
// stored regardless of age, for callers that prefer stale data over none.
type Cache[T any] interface {
    Get(key string) (T, bool)
    GetStale(key string) (T, bool)
    Put(key string, v T)
}

type entry[T any] struct {
    value      T
    insertedAt time.Time
}

// TTL is an in-memory cache with lazy expiry: entries are checked on read
// and never swept in the background. Size is bounded by the instrument
// universe, so unbounded growth is not a concern here.
type TTL[T any] struct {
    ttl time.Duration
    now func() time.Time

    mu    sync.RWMutex
    items map[string]entry[T]
}

func NewTTL[T any](ttl time.Duration) *TTL[T] {
    return &TTL[T]{ttl: ttl, now: time.Now, items: make(map[string]entry[T])}
}

func (c *TTL[T]) Get(key string) (T, bool) {
    c.mu.RLock()
    e, ok := c.items[key]
    c.mu.RUnlock()
    var zero T
    if !ok { return zero, false }
    if c.now().Sub(e.insertedAt) >= c.ttl {
        return zero, false
    }
    return e.value, true
}

func (c *TTL[T]) GetStale(key string) (T, bool) {
    c.mu.RLock()
    e, ok := c.items[key]
    c.mu.RUnlock()
    if !ok {
        var zero T
        return zero, false
    }
    return e.value, true
}

func (c *TTL[T]) Put(key string, v T) {
    c.mu.Lock()
    c.items[key] = entry[T]{value: v, insertedAt: c.now()}
    c.mu.Unlock()
}

// SetClock replaces the time source; tests use it to age entries
// without sleeping.
func (c *TTL[T]) SetClock(now func() time.Time) { c.now = now }
