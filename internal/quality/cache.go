package quality

import (
	"sync"
	"time"
)

// Cache is a process-wide TTL cache of quality results keyed by normalized
// URL. Entries are immutable once written, which makes cross-job sharing safe.
// It is purely a performance optimization, never a source of truth.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL (24h is the usual window).
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached result for a normalized URL, if present and fresh.
func (c *Cache) Get(normalizedURL string) (Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[normalizedURL]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return Result{}, false
	}
	return e.result, true
}

// Set stores a result under a normalized URL.
func (c *Cache) Set(normalizedURL string, r Result) {
	c.mu.Lock()
	c.entries[normalizedURL] = cacheEntry{result: r, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len reports the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
