package memorycache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/asakaida/kanmon/pkg/cache"
)

// DefaultMaxEntries is used when Config.MaxEntries is not positive
const DefaultMaxEntries = 10000

// entry represents a cache entry with value and expiry
type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is an in-process LRU cache with per-entry TTL.
type Cache struct {
	// mu serializes Get's check-then-remove of expired entries with Set
	mu    sync.Mutex
	items *lru.Cache[string, entry]
	ttl   time.Duration

	metrics *cacheMetrics
}

type cacheMetrics struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	keysAdded   atomic.Uint64
	keysEvicted atomic.Uint64
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxEntries is the maximum number of cached items.
	// When this limit is exceeded, least recently used items are evicted.
	MaxEntries int

	// DefaultTTL is applied when Set is called with a zero TTL.
	// A zero DefaultTTL means such items never expire.
	DefaultTTL time.Duration

	// EnableMetrics enables collection of cache metrics.
	EnableMetrics bool
}

// New creates a new memory cache with the given configuration.
func New(config *Config) (*Cache, error) {
	size := config.MaxEntries
	if size <= 0 {
		size = DefaultMaxEntries
	}

	c := &Cache{ttl: config.DefaultTTL}
	if config.EnableMetrics {
		c.metrics = &cacheMetrics{}
	}

	items, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	c.items = items
	return c, nil
}

// Get retrieves a value from cache.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	ent, ok := c.items.Get(key)
	if ok && ent.expired(time.Now()) {
		c.items.Remove(key)
		ok = false
	}
	c.mu.Unlock()

	if c.metrics != nil {
		if ok {
			c.metrics.hits.Add(1)
		} else {
			c.metrics.misses.Add(1)
		}
	}
	if !ok {
		return nil, false
	}
	return ent.value, true
}

// Set stores a value in cache with the specified TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	ent := entry{value: value}
	if ttl > 0 {
		ent.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	existed := c.items.Contains(key)
	evicted := c.items.Add(key, ent)
	c.mu.Unlock()

	if c.metrics != nil {
		if !existed {
			c.metrics.keysAdded.Add(1)
		}
		if evicted {
			c.metrics.keysEvicted.Add(1)
		}
	}
	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	c.items.Remove(key)
	c.mu.Unlock()
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.items.Purge()
	c.mu.Unlock()
	return nil
}

// Close releases resources (no-op for memory cache).
func (c *Cache) Close() error {
	return nil
}

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	if c.metrics == nil {
		return &cache.Metrics{}
	}
	return &cache.Metrics{
		Hits:        c.metrics.hits.Load(),
		Misses:      c.metrics.misses.Load(),
		KeysAdded:   c.metrics.keysAdded.Load(),
		KeysEvicted: c.metrics.keysEvicted.Load(),
	}
}

// ResetMetrics resets cache statistics.
func (c *Cache) ResetMetrics() {
	if c.metrics == nil {
		return
	}
	c.metrics.hits.Store(0)
	c.metrics.misses.Store(0)
	c.metrics.keysAdded.Store(0)
	c.metrics.keysEvicted.Store(0)
}

// Len returns the current number of items in cache, including expired ones not yet removed.
func (c *Cache) Len() int {
	return c.items.Len()
}
