package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheHitRate   prometheus.Gauge
	cacheKeys      prometheus.Gauge
	cacheEvictions prometheus.Counter
	evaluations    *prometheus.CounterVec
	conditionDrops *prometheus.CounterVec
	grpcRequests   *prometheus.CounterVec
	grpcDuration   *prometheus.HistogramVec
	grpcErrors     *prometheus.CounterVec
	decisions      *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kanmon_ability_cache_hits_total",
			Help: "Total number of ability cache hits",
		}),
		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kanmon_ability_cache_misses_total",
			Help: "Total number of ability cache misses",
		}),
		cacheHitRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kanmon_ability_cache_hit_rate",
			Help: "Current ability cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kanmon_ability_cache_keys_current",
			Help: "Current number of keys in the ability cache",
		}),
		cacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kanmon_ability_cache_evictions_total",
			Help: "Total number of ability cache evictions",
		}),
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanmon_permission_evaluations_total",
				Help: "Total number of permission evaluations by outcome",
			},
			[]string{"outcome"},
		),
		conditionDrops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanmon_condition_drops_total",
				Help: "Total number of conditions discarded during evaluation",
			},
			[]string{"reason"},
		),
		grpcRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanmon_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method"},
		),
		grpcDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kanmon_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"method"},
		),
		grpcErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanmon_grpc_errors_total",
				Help: "Total number of gRPC errors by status code",
			},
			[]string{"method", "code"},
		),
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanmon_authorization_decisions_total",
				Help: "Total number of authorization answers by outcome",
			},
			[]string{"method", "outcome"},
		),
	}
}

// Update updates Gauge metrics from the collector.
// Counters are updated via interceptor and recorder, so only gauges are set here.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cacheMetrics.HitRate)
	e.cacheKeys.Set(float64(cacheMetrics.KeysCurrent))
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(method string) {
	e.grpcRequests.WithLabelValues(method).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(method string, durationSeconds float64) {
	e.grpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordError records an error in Prometheus.
func (e *PrometheusExporter) RecordError(method, code string) {
	e.grpcErrors.WithLabelValues(method, code).Inc()
}

// RecordDecision records an authorization answer in Prometheus.
func (e *PrometheusExporter) RecordDecision(method, outcome string) {
	e.decisions.WithLabelValues(method, outcome).Inc()
}

// RecordEvaluation records the outcome of a permission evaluation.
func (e *PrometheusExporter) RecordEvaluation(outcome string) {
	e.evaluations.WithLabelValues(outcome).Inc()
}

// RecordConditionDrop records a discarded condition.
func (e *PrometheusExporter) RecordConditionDrop(reason string) {
	e.conditionDrops.WithLabelValues(reason).Inc()
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit() {
	e.cacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss() {
	e.cacheMisses.Inc()
}

// RecordCacheEviction records a cache eviction.
func (e *PrometheusExporter) RecordCacheEviction() {
	e.cacheEvictions.Inc()
}

// EvaluationRecorder forwards permission engine events to the collector and,
// when set, the Prometheus exporter.
type EvaluationRecorder struct {
	collector *Collector
	exporter  *PrometheusExporter
}

// NewEvaluationRecorder creates an EvaluationRecorder. exporter may be nil.
func NewEvaluationRecorder(collector *Collector, exporter *PrometheusExporter) *EvaluationRecorder {
	return &EvaluationRecorder{collector: collector, exporter: exporter}
}

// RecordEvaluation records the outcome of a permission evaluation.
func (r *EvaluationRecorder) RecordEvaluation(outcome string) {
	r.collector.RecordEvaluation(outcome)
	if r.exporter != nil {
		r.exporter.RecordEvaluation(outcome)
	}
}

// RecordConditionDrop records a discarded condition.
func (r *EvaluationRecorder) RecordConditionDrop(reason string) {
	r.collector.RecordConditionDrop(reason)
	if r.exporter != nil {
		r.exporter.RecordConditionDrop(reason)
	}
}
