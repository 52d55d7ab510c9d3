// Package metrics provides Prometheus metrics for the scale filter service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Filter
	batchesIngested     prometheus.Counter
	batchesPassthrough  prometheus.Counter
	batchesDuplicate    prometheus.Counter
	readingsProcessed   prometheus.Counter
	datapointsScaled    *prometheus.CounterVec
	datapointsSkipped   prometheus.Counter
	scaleFactor         prometheus.Gauge
	filterEnabled       prometheus.Gauge
	factorParseFailures prometheus.Counter
	transformLatency    prometheus.Histogram

	// Sink
	sinkDeliveries *prometheus.CounterVec
	sinkErrors     *prometheus.CounterVec
	sinkLatency    *prometheus.HistogramVec
	storeReadings  prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueTotal  prometheus.Counter
	queueDequeueTotal  prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker
	workerActiveCount       prometheus.Gauge
	workerBatchesPerSecond  prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "scale",
		subsystem:      "filter",
		latencyBuckets: prometheus.ExponentialBuckets(defaultLatencyStartMs, defaultLatencyFactor, defaultLatencyCount),
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// Default returns the process-wide manager backing the package functions.
func Default() *Manager { return globalManager }

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry { return customRegistry }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.latencyBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.latencyBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.batchesIngested = m.counter("batches_ingested_total", "Total number of batches handed to the filter")
	m.batchesPassthrough = m.counter("batches_passthrough_total", "Batches forwarded untouched because the filter was disabled")
	m.batchesDuplicate = m.counter("batches_duplicate_total", "Batches rejected at ingest because their id was already seen")
	m.readingsProcessed = m.counter("readings_processed_total", "Readings traversed by the scale transform")
	m.datapointsScaled = m.counterVec("datapoints_scaled_total", "Numeric datapoints rewritten by the scale transform", "kind")
	m.datapointsSkipped = m.counter("datapoints_skipped_total", "Non-numeric datapoints passed through")
	m.scaleFactor = m.gauge("factor", "Scale factor currently in effect")
	m.filterEnabled = m.gauge("enabled", "1 when the filter is enabled, 0 otherwise")
	m.factorParseFailures = m.counter("factor_parse_failures_total", "Factor values that were not entirely numeric")
	m.transformLatency = m.histogram("transform_latency_milliseconds", "Time spent scaling one batch")

	m.sinkDeliveries = m.counterVec("sink_deliveries_total", "Batches delivered downstream", "sink")
	m.sinkErrors = m.counterVec("sink_errors_total", "Downstream delivery failures", "sink")
	m.sinkLatency = m.histogramVec("sink_latency_milliseconds", "Downstream delivery latency", "sink")
	m.storeReadings = m.gauge("store_readings", "Readings held by the readings store")

	m.queueSize = m.gauge("queue_size", "Current number of batches waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of batches the queue holds")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueueTotal = m.counter("queue_enqueue_total", "Batches enqueued")
	m.queueDequeueTotal = m.counter("queue_dequeue_total", "Batches dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Batches rejected by the queue")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of running workers")
	m.workerBatchesPerSecond = m.gauge("worker_batches_per_second", "Batches processed per second across the pool")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time from dequeue to downstream hand-off")
	m.workerErrors = m.counter("worker_errors_total", "Batches the workers failed to forward")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time")
}

// Filter metrics.

func (m *Manager) RecordBatchIngested()    { m.batchesIngested.Inc() }
func (m *Manager) RecordBatchPassthrough() { m.batchesPassthrough.Inc() }
func (m *Manager) RecordBatchDuplicate()   { m.batchesDuplicate.Inc() }

// RecordTransform records the outcome of one enabled scale pass.
func (m *Manager) RecordTransform(readings, integers, floats, skipped int, latencyMs float64) {
	m.readingsProcessed.Add(float64(readings))
	m.datapointsScaled.WithLabelValues("integer").Add(float64(integers))
	m.datapointsScaled.WithLabelValues("float").Add(float64(floats))
	m.datapointsSkipped.Add(float64(skipped))
	m.transformLatency.Observe(latencyMs)
}

// UpdateFilterSettings publishes the settings snapshot in effect.
func (m *Manager) UpdateFilterSettings(enabled bool, factor float64) {
	if enabled {
		m.filterEnabled.Set(1)
	} else {
		m.filterEnabled.Set(0)
	}
	m.scaleFactor.Set(factor)
}

func (m *Manager) RecordFactorParseFailure() { m.factorParseFailures.Inc() }

// Sink metrics.

func (m *Manager) RecordSinkDelivery(sink string, latencyMs float64) {
	m.sinkDeliveries.WithLabelValues(sink).Inc()
	m.sinkLatency.WithLabelValues(sink).Observe(latencyMs)
}

func (m *Manager) RecordSinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
	m.errorsByComponent.WithLabelValues("sink", sink).Inc()
}

func (m *Manager) UpdateStoreReadings(count int) { m.storeReadings.Set(float64(count)) }

// Queue metrics.

// UpdateQueueSize sets the queue size gauge and derives utilization.
func (m *Manager) UpdateQueueSize(size, capacity int) {
	m.queueSize.Set(float64(size))
	if capacity > 0 {
		m.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

func (m *Manager) UpdateQueueCapacity(capacity int) { m.queueCapacity.Set(float64(capacity)) }
func (m *Manager) RecordQueueEnqueue()              { m.queueEnqueueTotal.Inc() }
func (m *Manager) RecordQueueDequeue()              { m.queueDequeueTotal.Inc() }

func (m *Manager) RecordQueueEnqueueError(reason string) {
	m.queueEnqueueErrors.Inc()
	m.errorsByComponent.WithLabelValues("queue", reason).Inc()
}

// Worker metrics.

func (m *Manager) UpdateWorkerActiveCount(count int)         { m.workerActiveCount.Set(float64(count)) }
func (m *Manager) UpdateWorkerBatchesPerSecond(rate float64) { m.workerBatchesPerSecond.Set(rate) }
func (m *Manager) RecordWorkerProcessingLatency(ms float64)  { m.workerProcessingLatency.Observe(ms) }

func (m *Manager) RecordWorkerError() {
	m.workerErrors.Inc()
	m.errorsByComponent.WithLabelValues("worker", "forward_error").Inc()
}

// HTTP metrics.

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func (m *Manager) RecordErrorByComponent(component, errorType string) {
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System metrics.

func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) { m.systemMemoryUsage.Set(float64(bytes)) }
func (m *Manager) UpdateSystemGoroutineCount(count int) { m.systemGoroutineCount.Set(float64(count)) }
func (m *Manager) RecordSystemGCPauseTime(pauseMs float64) {
	m.systemGCPauseTime.Observe(pauseMs)
}

// Package-level helpers record on the global manager.

func RecordBatchIngested()    { globalManager.RecordBatchIngested() }
func RecordBatchPassthrough() { globalManager.RecordBatchPassthrough() }
func RecordBatchDuplicate()   { globalManager.RecordBatchDuplicate() }

func RecordTransform(readings, integers, floats, skipped int, latencyMs float64) {
	globalManager.RecordTransform(readings, integers, floats, skipped, latencyMs)
}

func UpdateFilterSettings(enabled bool, factor float64) {
	globalManager.UpdateFilterSettings(enabled, factor)
}

func RecordFactorParseFailure() { globalManager.RecordFactorParseFailure() }
func RecordSinkDelivery(sink string, latencyMs float64) {
	globalManager.RecordSinkDelivery(sink, latencyMs)
}
func RecordSinkError(sink string)               { globalManager.RecordSinkError(sink) }
func UpdateStoreReadings(count int)             { globalManager.UpdateStoreReadings(count) }
func UpdateQueueSize(size, capacity int)        { globalManager.UpdateQueueSize(size, capacity) }
func UpdateQueueCapacity(capacity int)          { globalManager.UpdateQueueCapacity(capacity) }
func RecordQueueEnqueue()                       { globalManager.RecordQueueEnqueue() }
func RecordQueueDequeue()                       { globalManager.RecordQueueDequeue() }
func RecordQueueEnqueueError(reason string)     { globalManager.RecordQueueEnqueueError(reason) }
func UpdateWorkerActiveCount(count int)         { globalManager.UpdateWorkerActiveCount(count) }
func UpdateWorkerBatchesPerSecond(rate float64) { globalManager.UpdateWorkerBatchesPerSecond(rate) }
func RecordWorkerProcessingLatency(ms float64)  { globalManager.RecordWorkerProcessingLatency(ms) }
func RecordWorkerError()                        { globalManager.RecordWorkerError() }
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}
func UpdateSystemMemoryUsage(bytes uint64)    { globalManager.UpdateSystemMemoryUsage(bytes) }
func UpdateSystemGoroutineCount(count int)    { globalManager.UpdateSystemGoroutineCount(count) }
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.RecordSystemGCPauseTime(pauseMs) }

func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}
