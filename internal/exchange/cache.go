package exchange

import (
	"sync"
	"time"
)

// cacheEntry pairs a cached value with its write time.
type cacheEntry struct {
	value any
	ts    time.Time
}

// ttlCache is a process-local cache with a single freshness window.
// The Client owns exactly one instance for its whole lifetime; entries
// are only removed by an explicit Clear.
type ttlCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	hits    int64
	misses  int64

	now func() time.Time // injectable for tests
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// get returns the cached value for key if it is still fresh.
func (c *ttlCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.ts) >= c.ttl {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// getStale returns the cached value for key regardless of freshness.
// Used when the rate limiter blocks a refetch.
func (c *ttlCache) getStale(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (c *ttlCache) set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: v, ts: c.now()}
}

func (c *ttlCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// CacheStats is a snapshot of cache behaviour for diagnostics.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	TTLMs   int64 `json:"ttl_ms"`
}

func (c *ttlCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		TTLMs:   c.ttl.Milliseconds(),
	}
}

// rateLimiter allows at most one attempt per key per window.
type rateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time

	now func() time.Time
}

func newRateLimiter(window time.Duration) *rateLimiter {
	return &rateLimiter{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// allow records an attempt for key and reports whether it is permitted.
// The check and the timestamp write happen under one lock so concurrent
// callers for the same key cannot both pass.
func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if last, ok := r.last[key]; ok && now.Sub(last) < r.window {
		return false
	}
	r.last[key] = now
	return true
}

func (r *rateLimiter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = make(map[string]time.Time)
}
