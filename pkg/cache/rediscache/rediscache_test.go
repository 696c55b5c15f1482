package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), &Config{Addr: mr.Addr(), Prefix: "test", DefaultTTL: time.Minute})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestCache_SetAndGet(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte(`{"a":1}`), 0); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}

	value, found := c.Get(ctx, "key1")
	if !found {
		t.Fatal("expected to find key1")
	}
	if string(value.([]byte)) != `{"a":1}` {
		t.Errorf("expected stored bytes, got %s", value)
	}

	if !mr.Exists("test:key1") {
		t.Error("expected key to be stored under the prefix")
	}
	if ttl := mr.TTL("test:key1"); ttl != time.Minute {
		t.Errorf("expected default TTL of 1m, got %v", ttl)
	}

	if _, found := c.Get(ctx, "missing"); found {
		t.Error("expected not to find missing key")
	}

	m := c.Metrics()
	if m.Hits != 1 || m.Misses != 1 || m.KeysAdded != 1 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestCache_SetEncodesJSON(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "key1", map[string]int{"a": 1}, time.Second); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}
	value, _ := c.Get(ctx, "key1")
	if string(value.([]byte)) != `{"a":1}` {
		t.Errorf("expected JSON encoding, got %s", value)
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	c.Set(ctx, "key1", "value1", time.Second)
	mr.FastForward(2 * time.Second)

	if _, found := c.Get(ctx, "key1"); found {
		t.Error("expected key1 to expire")
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	c.Set(ctx, "key1", "value1", 0)
	c.Set(ctx, "key2", "value2", 0)
	mr.Set("other:key", "untouched")

	if err := c.Delete(ctx, "key1"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := c.Delete(ctx, "nonexistent"); err != nil {
		t.Fatalf("delete of non-existent key should not error: %v", err)
	}
	if _, found := c.Get(ctx, "key1"); found {
		t.Error("expected key1 to be deleted")
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	if _, found := c.Get(ctx, "key2"); found {
		t.Error("expected key2 to be cleared")
	}
	if !mr.Exists("other:key") {
		t.Error("Clear should only remove keys under the prefix")
	}
}

func TestNewWithClient_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(client, "", 0)
	defer c.Close()

	c.Set(context.Background(), "k", "v", 0)
	if !mr.Exists(DefaultPrefix + ":k") {
		t.Errorf("expected key under %q prefix", DefaultPrefix)
	}
}

func TestNew_ConnectionError(t *testing.T) {
	if _, err := New(context.Background(), &Config{Addr: "localhost:0"}); err == nil {
		t.Error("expected connection error")
	}
}
