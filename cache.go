package main

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrCacheMiss is returned when a key is absent or its entry has expired.
var ErrCacheMiss = errors.New("cache miss")

// cacheKeyPrefix namespaces user-stats entries so the whole namespace can
// be dropped when all persisted users are deleted.
const cacheKeyPrefix = "lc:"

// cacheKey derives the cache identity for a username: case-insensitive,
// while the stored record keeps the display casing.
func cacheKey(username string) string {
	return cacheKeyPrefix + strings.ToLower(username)
}

// statsCache is an in-process TTL cache for UserStats. Expiry is lazy:
// entries are checked on read, never proactively swept. Contents are lost
// on restart, which is acceptable; the store is the durable copy.
type statsCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newStatsCache(ttl time.Duration) *statsCache {
	return &statsCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// get returns the cached record for key, or ErrCacheMiss. An expired entry
// is evicted on the spot and reported as a miss.
func (c *statsCache) get(key string) (UserStats, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return UserStats{}, ErrCacheMiss
	}

	if time.Now().After(entry.expiresAt) {
		c.invalidate(key)
		return UserStats{}, ErrCacheMiss
	}

	return entry.stats, nil
}

// set stores a record under key with the cache-wide TTL.
func (c *statsCache) set(key string, stats UserStats) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		stats:     stats,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// invalidate removes a single entry.
func (c *statsCache) invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// invalidatePrefix removes every entry whose key starts with prefix.
func (c *statsCache) invalidatePrefix(prefix string) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
