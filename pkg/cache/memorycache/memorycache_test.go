package memorycache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCache_SetAndGet(t *testing.T) {
	cache, err := New(&Config{
		MaxEntries:    1000,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()

	// Set a value
	err = cache.Set(ctx, "key1", "value1", time.Minute)
	if err != nil {
		t.Fatalf("failed to set value: %v", err)
	}

	// Get the value
	value, found := cache.Get(ctx, "key1")
	if !found {
		t.Error("expected to find key1")
	}
	if value != "value1" {
		t.Errorf("expected value1, got %v", value)
	}

	// Get non-existent key
	_, found = cache.Get(ctx, "nonexistent")
	if found {
		t.Error("expected not to find nonexistent key")
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	cache, err := New(&Config{
		MaxEntries:    1000,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()

	// Set a value with short TTL
	err = cache.Set(ctx, "key1", "value1", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to set value: %v", err)
	}

	// Should find it immediately
	_, found := cache.Get(ctx, "key1")
	if !found {
		t.Error("expected to find key1 before expiration")
	}

	// Wait for expiration
	time.Sleep(100 * time.Millisecond)

	// Should not find it after expiration
	_, found = cache.Get(ctx, "key1")
	if found {
		t.Error("expected not to find key1 after expiration")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	// Create a cache with very small capacity
	cache, err := New(&Config{
		MaxEntries:    2,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()

	// Add multiple items
	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		err = cache.Set(ctx, key, i, time.Minute)
		if err != nil {
			t.Fatalf("failed to set value: %v", err)
		}
	}

	// Cache should have evicted older items
	if cache.Len() >= 10 {
		t.Errorf("expected less than 10 items due to eviction, got %d", cache.Len())
	}

	// Most recent items should still be present
	_, found := cache.Get(ctx, "j") // last item
	if !found {
		t.Error("expected to find most recent item 'j'")
	}

	if evicted := cache.Metrics().KeysEvicted; evicted != 8 {
		t.Errorf("expected 8 evictions, got %d", evicted)
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	cache, err := New(&Config{
		MaxEntries: 10,
		DefaultTTL: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()

	// Zero TTL falls back to DefaultTTL
	cache.Set(ctx, "key1", "value1", 0)
	time.Sleep(100 * time.Millisecond)

	if _, found := cache.Get(ctx, "key1"); found {
		t.Error("expected key1 to expire after DefaultTTL")
	}
}

func TestCache_Delete(t *testing.T) {
	cache, err := New(&Config{
		MaxEntries:    1000,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()

	// Set and verify
	cache.Set(ctx, "key1", "value1", time.Minute)
	_, found := cache.Get(ctx, "key1")
	if !found {
		t.Error("expected to find key1")
	}

	// Delete
	err = cache.Delete(ctx, "key1")
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	// Should not find it
	_, found = cache.Get(ctx, "key1")
	if found {
		t.Error("expected not to find key1 after deletion")
	}

	// Delete non-existent key should not error
	err = cache.Delete(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("delete of non-existent key should not error: %v", err)
	}
}

func TestCache_Clear(t *testing.T) {
	cache, err := New(&Config{
		MaxEntries:    1000,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()

	// Add multiple items
	cache.Set(ctx, "key1", "value1", time.Minute)
	cache.Set(ctx, "key2", "value2", time.Minute)
	cache.Set(ctx, "key3", "value3", time.Minute)

	if cache.Len() != 3 {
		t.Errorf("expected 3 items, got %d", cache.Len())
	}

	// Clear
	err = cache.Clear(ctx)
	if err != nil {
		t.Fatalf("failed to clear: %v", err)
	}

	if cache.Len() != 0 {
		t.Errorf("expected 0 items after clear, got %d", cache.Len())
	}
}

func TestCache_Metrics(t *testing.T) {
	cache, err := New(&Config{
		MaxEntries:    1000,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()

	// Initially no hits or misses
	metrics := cache.Metrics()
	if metrics.Hits != 0 || metrics.Misses != 0 {
		t.Errorf("expected 0 hits and misses initially, got %d hits and %d misses", metrics.Hits, metrics.Misses)
	}

	// Set a value
	cache.Set(ctx, "key1", "value1", time.Minute)

	// Get should be a hit
	cache.Get(ctx, "key1")
	metrics = cache.Metrics()
	if metrics.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", metrics.Hits)
	}

	// Get non-existent should be a miss
	cache.Get(ctx, "nonexistent")
	metrics = cache.Metrics()
	if metrics.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", metrics.Misses)
	}

	// Verify hit rate
	expectedHitRate := 0.5 // 1 hit, 1 miss
	if metrics.HitRate() != expectedHitRate {
		t.Errorf("expected hit rate %f, got %f", expectedHitRate, metrics.HitRate())
	}
}

func TestCache_UpdateExisting(t *testing.T) {
	cache, err := New(&Config{
		MaxEntries:    1000,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()

	// Set initial value
	cache.Set(ctx, "key1", "value1", time.Minute)

	// Update value
	cache.Set(ctx, "key1", "value2", time.Minute)

	// Get updated value
	value, found := cache.Get(ctx, "key1")
	if !found {
		t.Error("expected to find key1")
	}
	if value != "value2" {
		t.Errorf("expected value2, got %v", value)
	}

	// Should still be only 1 item
	if cache.Len() != 1 {
		t.Errorf("expected 1 item, got %d", cache.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache, err := New(&Config{
		MaxEntries:    1000,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	ctx := context.Background()
	done := make(chan bool)

	// Concurrent writers
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 100; j++ {
				key := string(rune('a' + id))
				cache.Set(ctx, key, j, time.Minute)
			}
			done <- true
		}(i)
	}

	// Concurrent readers
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 100; j++ {
				key := string(rune('a' + id))
				cache.Get(ctx, key)
			}
			done <- true
		}(i)
	}

	// Wait for all goroutines
	for i := 0; i < 20; i++ {
		<-done
	}

	// Just verify no panics occurred
	t.Log("concurrent access test passed without panics")
}

func TestCache_LRUEvictionOrder(t *testing.T) {
	cache, err := New(&Config{MaxEntries: 3, EnableMetrics: true})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		cache.Set(ctx, key, key, time.Minute)
	}

	// Reading a and rewriting b makes c the least recently used
	cache.Get(ctx, "a")
	cache.Set(ctx, "b", "b2", time.Minute)

	cache.Set(ctx, "d", "d", time.Minute)
	if _, found := cache.Get(ctx, "c"); found {
		t.Error("expected c to be evicted first")
	}

	cache.Set(ctx, "e", "e", time.Minute)
	if _, found := cache.Get(ctx, "a"); found {
		t.Error("expected a to be evicted second")
	}

	for _, key := range []string{"b", "d", "e"} {
		if _, found := cache.Get(ctx, key); !found {
			t.Errorf("expected %s to remain cached", key)
		}
	}
	if evicted := cache.Metrics().KeysEvicted; evicted != 2 {
		t.Errorf("expected 2 evictions, got %d", evicted)
	}
}

func TestCache_PerEntryTTL(t *testing.T) {
	cache, err := New(&Config{MaxEntries: 10, DefaultTTL: time.Hour, EnableMetrics: true})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	ctx := context.Background()

	cache.Set(ctx, "short", 1, 50*time.Millisecond)
	cache.Set(ctx, "default", 2, 0)
	cache.Set(ctx, "long", 3, time.Hour)
	time.Sleep(100 * time.Millisecond)

	tests := []struct {
		key   string
		found bool
	}{
		{key: "short", found: false},
		{key: "default", found: true},
		{key: "long", found: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if _, found := cache.Get(ctx, tt.key); found != tt.found {
				t.Errorf("Get(%s) found = %v, want %v", tt.key, found, tt.found)
			}
		})
	}

	// The expired entry is removed on read and counted as a miss
	if cache.Len() != 2 {
		t.Errorf("expected 2 items after expired read, got %d", cache.Len())
	}
	if misses := cache.Metrics().Misses; misses != 1 {
		t.Errorf("expected 1 miss, got %d", misses)
	}
}

func TestCache_ResetTTLOnOverwrite(t *testing.T) {
	cache, err := New(&Config{MaxEntries: 10})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	ctx := context.Background()

	cache.Set(ctx, "key1", "value1", 50*time.Millisecond)
	cache.Set(ctx, "key1", "value2", time.Hour)
	time.Sleep(100 * time.Millisecond)

	if value, found := cache.Get(ctx, "key1"); !found || value != "value2" {
		t.Errorf("expected the overwritten entry to keep the new TTL, got %v, %v", value, found)
	}
}

func TestCache_NoTTLNeverExpires(t *testing.T) {
	cache, err := New(&Config{MaxEntries: 10})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	ctx := context.Background()

	cache.Set(ctx, "key1", "value1", 0)
	time.Sleep(20 * time.Millisecond)

	if _, found := cache.Get(ctx, "key1"); !found {
		t.Error("expected an entry without TTL to stay cached")
	}
}

func TestCache_DefaultMaxEntries(t *testing.T) {
	cache, err := New(&Config{EnableMetrics: true})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	ctx := context.Background()

	for i := 0; i <= DefaultMaxEntries; i++ {
		cache.Set(ctx, fmt.Sprintf("ability:%d", i), i, 0)
	}

	if cache.Len() != DefaultMaxEntries {
		t.Errorf("expected %d items, got %d", DefaultMaxEntries, cache.Len())
	}
	if _, found := cache.Get(ctx, "ability:0"); found {
		t.Error("expected the oldest entry to be evicted")
	}
}

func TestCache_ResetMetrics(t *testing.T) {
	cache, err := New(&Config{MaxEntries: 1, EnableMetrics: true})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	ctx := context.Background()

	cache.Set(ctx, "a", 1, 0)
	cache.Set(ctx, "b", 2, 0)
	cache.Get(ctx, "a")
	cache.Get(ctx, "b")

	cache.ResetMetrics()
	if m := cache.Metrics(); m.Hits != 0 || m.Misses != 0 || m.KeysAdded != 0 || m.KeysEvicted != 0 {
		t.Errorf("expected zeroed metrics, got %+v", m)
	}

	// Disabled metrics report zeros
	plain, _ := New(&Config{MaxEntries: 1})
	plain.Get(ctx, "missing")
	if m := plain.Metrics(); m.Misses != 0 {
		t.Errorf("expected no metrics when disabled, got %+v", m)
	}
}
