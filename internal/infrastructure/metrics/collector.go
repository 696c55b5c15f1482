package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/asakaida/kanmon/pkg/cache"
	"github.com/asakaida/kanmon/pkg/cache/memorycache"
)

// Collector collects and aggregates metrics for the application.
type Collector struct {
	// API metrics
	apiRequests sync.Map // map[string]*uint64 - method -> count
	apiErrors   sync.Map // map[string]*uint64 - method -> error count
	apiCodes    sync.Map // map[string]*uint64 - gRPC status code -> error count
	decisions   sync.Map // map[string]*uint64 - decision outcome -> count
	apiDuration sync.Map // map[string]*durationValue - method -> total duration in seconds

	// Permission engine metrics
	evaluations    sync.Map // map[string]*uint64 - outcome -> count
	conditionDrops sync.Map // map[string]*uint64 - reason -> count

	// Cache reference (optional, for querying cache-specific metrics)
	cache cache.Cache
}

// durationValue holds duration with mutex for thread-safe updates.
type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// CacheMetrics holds ability cache metrics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	Evictions   uint64
}

// APIMetrics holds API request metrics.
type APIMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	ErrorCodes           map[string]uint64
	Decisions            map[string]uint64
	TotalDurationSeconds map[string]float64
}

// EngineMetrics holds permission engine metrics.
type EngineMetrics struct {
	Evaluations    map[string]uint64
	ConditionDrops map[string]uint64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the cache instance for collecting cache metrics.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordRequest records an API request.
func (c *Collector) RecordRequest(method string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.apiRequests, method), 1)
}

// RecordError records an API error and its gRPC status code.
func (c *Collector) RecordError(method, code string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.apiErrors, method), 1)
	atomic.AddUint64(c.getOrCreateCounter(&c.apiCodes, code), 1)
}

// RecordDecision records an allowed or denied authorization answer.
func (c *Collector) RecordDecision(outcome string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.decisions, outcome), 1)
}

// RecordDuration records the duration of an API call in seconds.
func (c *Collector) RecordDuration(method string, durationSeconds float64) {
	val, _ := c.apiDuration.LoadOrStore(method, &durationValue{})
	dv := val.(*durationValue)

	dv.mu.Lock()
	dv.totalSeconds += durationSeconds
	dv.mu.Unlock()
}

// RecordEvaluation records the outcome of a permission evaluation.
func (c *Collector) RecordEvaluation(outcome string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.evaluations, outcome), 1)
}

// RecordConditionDrop records a condition discarded during evaluation.
func (c *Collector) RecordConditionDrop(reason string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.conditionDrops, reason), 1)
}

// GetCacheMetrics returns current cache metrics.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	if c.cache == nil {
		return &CacheMetrics{}
	}

	metrics := c.cache.Metrics()
	if metrics == nil {
		return &CacheMetrics{}
	}

	result := &CacheMetrics{
		Hits:      metrics.Hits,
		Misses:    metrics.Misses,
		HitRate:   metrics.HitRate(),
		Evictions: metrics.KeysEvicted,
	}

	if memCache, ok := c.cache.(*memorycache.Cache); ok {
		result.KeysCurrent = int64(memCache.Len())
	}

	return result
}

// GetAPIMetrics returns current API metrics.
func (c *Collector) GetAPIMetrics() *APIMetrics {
	result := &APIMetrics{
		RequestCounts:        loadCounters(&c.apiRequests),
		ErrorCounts:          loadCounters(&c.apiErrors),
		ErrorCodes:           loadCounters(&c.apiCodes),
		Decisions:            loadCounters(&c.decisions),
		TotalDurationSeconds: make(map[string]float64),
	}

	c.apiDuration.Range(func(key, value interface{}) bool {
		dv := value.(*durationValue)
		dv.mu.Lock()
		result.TotalDurationSeconds[key.(string)] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return result
}

// GetEngineMetrics returns current permission engine metrics.
func (c *Collector) GetEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		Evaluations:    loadCounters(&c.evaluations),
		ConditionDrops: loadCounters(&c.conditionDrops),
	}
}

// getOrCreateCounter gets or creates a counter for the given key.
func (c *Collector) getOrCreateCounter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}

func loadCounters(m *sync.Map) map[string]uint64 {
	out := make(map[string]uint64)
	m.Range(func(key, value interface{}) bool {
		out[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	return out
}
