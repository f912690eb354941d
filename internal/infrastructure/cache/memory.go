package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	"github.com/bravo68web/qadeck/internal/observability"
)

// DefaultMaxEntries bounds a MemoryCache built with a non-positive size
const DefaultMaxEntries = 1000

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache. Values are stored JSON-encoded so
// callers get the same copy semantics as the Redis backend.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

var _ domainservice.Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty cache holding at most maxEntries keys
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get decodes the value stored under key into dest. Expired keys count as
// misses and are dropped.
func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		if ok {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		observability.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return false, nil
	}

	observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return true, json.Unmarshal(e.value, dest)
}

// Set stores value under key for ttl, evicting an entry first when the cache is full
func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = entry{value: raw, expiresAt: c.now().Add(ttl)}
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// Len returns the number of stored keys, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked drops expired keys, or the entry closest to expiry when none are
func (c *MemoryCache) evictLocked() {
	now := c.now()
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
