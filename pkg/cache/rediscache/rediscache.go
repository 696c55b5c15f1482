// Package rediscache implements cache.Cache on top of Redis so that several
// instances can share cached abilities.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/asakaida/kanmon/pkg/cache"
)

// DefaultPrefix namespaces keys written by this cache
const DefaultPrefix = "kanmon"

// Cache stores values in Redis under a key prefix.
// Get always returns the stored bytes as []byte.
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration

	hits      atomic.Uint64
	misses    atomic.Uint64
	keysAdded atomic.Uint64
}

// Config holds configuration for the Redis cache.
type Config struct {
	// Addr is the Redis address (host:port)
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every key as "<prefix>:"
	Prefix string

	// DefaultTTL is applied when Set is called with a zero TTL
	DefaultTTL time.Duration
}

// New connects to Redis and returns a cache.
func New(ctx context.Context, config *Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewWithClient(client, config.Prefix, config.DefaultTTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) key(key string) string {
	return c.prefix + ":" + key
}

// Get retrieves a value from cache.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return val, true
}

// Set stores a value in cache. []byte and string values are stored as is;
// anything else is encoded as JSON.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	var payload []byte
	switch v := value.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode cache value: %w", err)
		}
		payload = b
	}

	if err := c.client.Set(ctx, c.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %q: %w", key, err)
	}
	c.keysAdded.Add(1)
	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete cache key %q: %w", key, err)
	}
	return nil
}

// Clear removes every key under the prefix.
func (c *Cache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+":*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to clear cache keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Metrics returns cache statistics. Evictions are handled by Redis and not counted.
func (c *Cache) Metrics() *cache.Metrics {
	return &cache.Metrics{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		KeysAdded: c.keysAdded.Load(),
	}
}

var _ cache.Cache = (*Cache)(nil)
