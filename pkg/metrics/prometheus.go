// Package metrics provides Prometheus metrics for the normalization service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default histogram buckets for millisecond latencies.
var defaultBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

// Manager owns the Prometheus collectors of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	// Normalization metrics.
	recordsNormalized   *prometheus.CounterVec
	normalizationErrors *prometheus.CounterVec
	pinvDuration        prometheus.Histogram

	// Store metrics.
	datasetsStored prometheus.Gauge

	// Queue metrics.
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics.
	workerActive      prometheus.Gauge
	workerErrors      prometheus.Counter
	workerJobDuration prometheus.Histogram

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager and registers all collectors on its
// registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "datakit",
		subsystem:        "normalizer",
		histogramBuckets: defaultBuckets,
		enabled:          true,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.recordsNormalized = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_normalized_total",
		Help:      "Records normalized, by datatype and target schema version.",
	}, []string{"kind", "version"})

	m.normalizationErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "normalization_errors_total",
		Help:      "Normalization failures, by datatype and reason.",
	}, []string{"kind", "reason"})

	m.pinvDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pinv_duration_ms",
		Help:      "Pseudo-inverse computation duration in milliseconds.",
		Buckets:   m.histogramBuckets,
	})

	m.datasetsStored = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "datasets_stored",
		Help:      "Normalized datasets currently held in the store.",
	})

	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Datasets currently queued for normalization.",
	})

	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the ingest queue.",
	})

	m.queueUtilization = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization",
		Help:      "Fraction of the ingest queue in use.",
	})

	m.queueEnqueues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Datasets accepted onto the ingest queue.",
	})

	m.queueDequeues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeues_total",
		Help:      "Datasets handed to workers.",
	})

	m.queueEnqueueErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Enqueue attempts rejected (full, closed, or cancelled).",
	})

	m.workerActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active",
		Help:      "Workers currently running.",
	})

	m.workerErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Dataset normalizations that failed in a worker.",
	})

	m.workerJobDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_job_duration_ms",
		Help:      "End-to-end worker job duration in milliseconds.",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	return m
}

// Registry returns the manager's Prometheus registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

var (
	globalMu sync.RWMutex
	global   = NewManager()
)

// SetGlobal replaces the package-level manager. Intended for main and tests.
func SetGlobal(m *Manager) {
	if m == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	global = m
}

func get() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// GetRegistry returns the registry backing the package-level manager.
func GetRegistry() *prometheus.Registry {
	return get().Registry()
}

// Package-level recording helpers. They are no-ops when metrics are
// disabled on the active manager.

func RecordNormalization(kind, version string) {
	if m := get(); m.enabled {
		m.recordsNormalized.WithLabelValues(kind, version).Inc()
	}
}

func RecordNormalizationError(kind, reason string) {
	if m := get(); m.enabled {
		m.normalizationErrors.WithLabelValues(kind, reason).Inc()
	}
}

func ObservePinvDuration(ms float64) {
	if m := get(); m.enabled {
		m.pinvDuration.Observe(ms)
	}
}

func UpdateDatasetsStored(n int) {
	if m := get(); m.enabled {
		m.datasetsStored.Set(float64(n))
	}
}

func UpdateQueueSize(n int) {
	if m := get(); m.enabled {
		m.queueSize.Set(float64(n))
	}
}

func UpdateQueueCapacity(n int) {
	if m := get(); m.enabled {
		m.queueCapacity.Set(float64(n))
	}
}

func UpdateQueueUtilization(f float64) {
	if m := get(); m.enabled {
		m.queueUtilization.Set(f)
	}
}

func RecordQueueEnqueue() {
	if m := get(); m.enabled {
		m.queueEnqueues.Inc()
	}
}

func RecordQueueDequeue() {
	if m := get(); m.enabled {
		m.queueDequeues.Inc()
	}
}

func RecordQueueEnqueueError() {
	if m := get(); m.enabled {
		m.queueEnqueueErrors.Inc()
	}
}

func UpdateWorkerActiveCount(n int) {
	if m := get(); m.enabled {
		m.workerActive.Set(float64(n))
	}
}

func RecordWorkerError() {
	if m := get(); m.enabled {
		m.workerErrors.Inc()
	}
}

func ObserveWorkerJobDuration(ms float64) {
	if m := get(); m.enabled {
		m.workerJobDuration.Observe(ms)
	}
}

func RecordHTTPRequest(endpoint, method, status string) {
	if m := get(); m.enabled {
		m.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	if m := get(); m.enabled {
		m.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
	}
}
