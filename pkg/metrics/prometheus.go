// Package metrics provides Prometheus metrics for the ASD screening service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// probabilityBuckets cover the [0,1] positive-class probability in tenths.
var probabilityBuckets = []float64{0.1, 0.2, 0.3, 0.33, 0.4, 0.5, 0.6, 0.66, 0.7, 0.8, 0.85, 0.9, 1} //nolint:gochecknoglobals // fixed buckets

// Manager manages all Prometheus metrics for the screening service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Screening outcomes
	predictions        *prometheus.CounterVec
	probability        prometheus.Histogram
	validationFailures *prometheus.CounterVec
	inferenceLatency   prometheus.Histogram
	inferenceErrors    prometheus.Counter

	// Prediction memo
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// Loaded artifact
	modelInfo      *prometheus.GaugeVec
	modelTrees     prometheus.Gauge
	modelTrainRows prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "asdscreen",
		subsystem:        "screening",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often gauge snapshots should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(
		m.counterOpts("predictions_total", "Total number of screening predictions by label and severity"),
		[]string{"label", "severity"},
	)
	m.probability = auto.NewHistogram(
		m.histogramOpts("probability", "Distribution of reported positive-class probabilities", probabilityBuckets),
	)
	m.validationFailures = auto.NewCounterVec(
		m.counterOpts("validation_failures_total", "Total number of rejected input fields by field and reason"),
		[]string{"field", "reason"},
	)
	m.inferenceLatency = auto.NewHistogram(
		m.histogramOpts("inference_latency_milliseconds", "Model inference latency in milliseconds", m.histogramBuckets),
	)
	m.inferenceErrors = auto.NewCounter(
		m.counterOpts("inference_errors_total", "Total number of model failures during prediction"),
	)

	m.cacheHits = auto.NewCounter(m.counterOpts("cache_hits_total", "Predictions served from the memo"))
	m.cacheMisses = auto.NewCounter(m.counterOpts("cache_misses_total", "Predictions computed by the model"))

	m.modelInfo = auto.NewGaugeVec(
		m.gaugeOpts("model_info", "Loaded artifact metadata; value is always 1"),
		[]string{"format_version", "trained_at"},
	)
	m.modelTrees = auto.NewGauge(m.gaugeOpts("model_trees", "Number of trees in the loaded forest"))
	m.modelTrainRows = auto.NewGauge(m.gaugeOpts("model_train_rows", "Rows the loaded forest was fitted on"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// RecordPrediction counts one served prediction and observes its probability.
// severity is empty when severity reporting is disabled.
func RecordPrediction(label, severity string, probability float64) {
	if severity == "" {
		severity = "none"
	}
	globalManager.predictions.WithLabelValues(label, severity).Inc()
	globalManager.probability.Observe(probability)
}

// RecordValidationFailure counts one rejected input field.
func RecordValidationFailure(field, reason string) {
	globalManager.validationFailures.WithLabelValues(field, reason).Inc()
}

// RecordInferenceLatency records model inference latency in milliseconds.
func RecordInferenceLatency(latencyMs float64) {
	globalManager.inferenceLatency.Observe(latencyMs)
}

// RecordInferenceError increments the model failure counter.
func RecordInferenceError() {
	globalManager.inferenceErrors.Inc()
}

// RecordCacheHit increments the memo hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the memo miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// UpdateModelInfo publishes metadata of the loaded artifact.
func UpdateModelInfo(formatVersion, trainedAt string, trees, trainRows int) {
	globalManager.modelInfo.Reset()
	globalManager.modelInfo.WithLabelValues(formatVersion, trainedAt).Set(1)
	globalManager.modelTrees.Set(float64(trees))
	globalManager.modelTrainRows.Set(float64(trainRows))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRefreshInterval returns the global manager's gauge refresh interval.
func GetRefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
