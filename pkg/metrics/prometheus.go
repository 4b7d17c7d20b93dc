// Package metrics provides Prometheus metrics for the birdboard service.
package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Upstream outcome labels.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeAPIError     = "api_error"
	OutcomeFormat       = "format_error"
	OutcomeTransport    = "transport_error"
	OutcomeConfig       = "config_error"
)

// Manager manages all Prometheus metrics for the birdboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Upstream (eBird API) metrics
	upstreamRequests        *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	upstreamShared          *prometheus.CounterVec

	// View projection metrics
	viewsComputed *prometheus.CounterVec
	viewErrors    *prometheus.CounterVec
	viewItems     *prometheus.GaugeVec

	// Refresh pipeline metrics
	refreshQueueSize     prometheus.Gauge
	refreshQueueCapacity prometheus.Gauge
	refreshEnqueued      prometheus.Counter
	refreshRejected      *prometheus.CounterVec
	refreshApplied       prometheus.Counter
	refreshStale         prometheus.Counter
	refreshFailed        prometheus.Counter
	refreshDuration      prometheus.Histogram
	workerCount          prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

type state struct {
	manager  *Manager
	registry *prometheus.Registry
}

// current holds the manager every package-level helper records into.
var current atomic.Pointer[state] //nolint:gochecknoglobals // intentional global for singleton metrics manager

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Label names used by the metric vectors; constant labels may not reuse them.
var variableLabels = map[string]bool{ //nolint:gochecknoglobals // read-only lookup
	"endpoint": true, "outcome": true, "view": true, "status": true, "kind": true,
	"reason": true, "method": true, "status_code": true, "error_type": true,
}

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	if err := Configure(); err != nil {
		panic(err)
	}
}

// Configure replaces the global manager with one built from opts on a fresh
// custom registry, so default Go metrics stay out. Handlers built with
// GetRegistry before the call keep serving the previous registry. On error
// the current manager is left in place.
func Configure(opts ...Option) error {
	reg := prometheus.NewRegistry()
	m := newManager(append(opts[:len(opts):len(opts)], WithPrometheusRegistry(reg))...)
	if err := m.validate(); err != nil {
		return err
	}
	m.initializeMetrics()
	current.Store(&state{manager: m, registry: reg})
	return nil
}

func global() *Manager { return current.Load().manager }

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := newManager(opts...)
	m.initializeMetrics()
	return m
}

func newManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "birdboard",
		subsystem:        "dashboard",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// validate rejects settings the Prometheus client would panic on.
func (m *Manager) validate() error {
	if !metricName.MatchString(m.namespace) {
		return fmt.Errorf("%w: namespace %q", ErrInvalidOption, m.namespace)
	}
	if m.subsystem != "" && !metricName.MatchString(m.subsystem) {
		return fmt.Errorf("%w: subsystem %q", ErrInvalidOption, m.subsystem)
	}
	for i := 1; i < len(m.histogramBuckets); i++ {
		if m.histogramBuckets[i] <= m.histogramBuckets[i-1] {
			return fmt.Errorf("%w: histogram buckets must increase, got %v", ErrInvalidOption, m.histogramBuckets)
		}
	}
	for name := range m.customLabels {
		if !metricName.MatchString(name) || strings.HasPrefix(name, "__") || variableLabels[name] {
			return fmt.Errorf("%w: label %q", ErrInvalidOption, name)
		}
	}
	return nil
}

// Enabled reports whether recording is turned on for this manager.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often periodic gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.upstreamRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "upstream_requests_total",
		Help:        "Upstream API requests by endpoint and outcome",
		ConstLabels: labels,
	}, []string{"endpoint", "outcome"})

	m.upstreamRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "upstream_request_duration_milliseconds",
		Help:        "Upstream API request latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint"})

	m.upstreamShared = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "upstream_shared_total",
		Help:        "Upstream calls whose result was shared with a concurrent identical call",
		ConstLabels: labels,
	}, []string{"endpoint"})

	m.viewsComputed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "views_computed_total",
		Help:        "View projections computed by view and result status",
		ConstLabels: labels,
	}, []string{"view", "status"})

	m.viewErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "view_errors_total",
		Help:        "View projections that failed, by view and error kind",
		ConstLabels: labels,
	}, []string{"view", "kind"})

	m.viewItems = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "view_items",
		Help:        "Number of items in the most recently computed view",
		ConstLabels: labels,
	}, []string{"view"})

	m.refreshQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_queue_size",
		Help:        "Pending refresh requests",
		ConstLabels: labels,
	})

	m.refreshQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_queue_capacity",
		Help:        "Maximum pending refresh requests",
		ConstLabels: labels,
	})

	m.refreshEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_enqueued_total",
		Help:        "Refresh requests accepted onto the queue",
		ConstLabels: labels,
	})

	m.refreshRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_rejected_total",
		Help:        "Refresh requests rejected by the queue, by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.refreshApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_applied_total",
		Help:        "Refresh results applied to visible state",
		ConstLabels: labels,
	})

	m.refreshStale = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_stale_total",
		Help:        "Refresh results dropped because a newer generation was issued",
		ConstLabels: labels,
	})

	m.refreshFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_failed_total",
		Help:        "Refresh runs where at least one view failed",
		ConstLabels: labels,
	})

	m.refreshDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_duration_milliseconds",
		Help:        "Time to compute a full dashboard refresh in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_worker_count",
		Help:        "Number of refresh workers",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_errors_total",
		Help:        "HTTP error responses by endpoint, method and error type",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_usage_bytes",
		Help:        "Current heap allocation in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutine_count",
		Help:        "Current number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "gc_pause_milliseconds",
		Help:        "Average GC pause time in milliseconds",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		ConstLabels: labels,
	})
}

// Upstream metrics.

// RecordUpstreamRequest counts one upstream call and its latency.
func RecordUpstreamRequest(endpoint, outcome string, latencyMs float64) {
	if !global().Enabled() {
		return
	}
	global().upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	global().upstreamRequestDuration.WithLabelValues(endpoint).Observe(latencyMs)
}

// RecordUpstreamShared counts a caller that received a collapsed result.
func RecordUpstreamShared(endpoint string) {
	if !global().Enabled() {
		return
	}
	global().upstreamShared.WithLabelValues(endpoint).Inc()
}

// View metrics.

// RecordViewComputed counts a successfully computed view and its size.
func RecordViewComputed(view, status string, items int) {
	if !global().Enabled() {
		return
	}
	global().viewsComputed.WithLabelValues(view, status).Inc()
	global().viewItems.WithLabelValues(view).Set(float64(items))
}

// RecordViewError counts a failed view computation.
func RecordViewError(view, kind string) {
	if !global().Enabled() {
		return
	}
	global().viewErrors.WithLabelValues(view, kind).Inc()
}

// Refresh pipeline metrics.

// UpdateRefreshQueueSize sets the number of pending refresh requests.
func UpdateRefreshQueueSize(size int) {
	global().refreshQueueSize.Set(float64(size))
}

// UpdateRefreshQueueCapacity sets the refresh queue capacity.
func UpdateRefreshQueueCapacity(capacity int) {
	global().refreshQueueCapacity.Set(float64(capacity))
}

// RecordRefreshEnqueued counts an accepted refresh request.
func RecordRefreshEnqueued() {
	global().refreshEnqueued.Inc()
}

// RecordRefreshRejected counts a refresh request the queue refused.
func RecordRefreshRejected(reason string) {
	global().refreshRejected.WithLabelValues(reason).Inc()
}

// RecordRefreshApplied counts a refresh result written to visible state.
func RecordRefreshApplied() {
	global().refreshApplied.Inc()
}

// RecordRefreshStale counts a refresh result superseded by a newer generation.
func RecordRefreshStale() {
	global().refreshStale.Inc()
}

// RecordRefreshFailed counts a refresh run with at least one failed view.
func RecordRefreshFailed() {
	global().refreshFailed.Inc()
}

// RecordRefreshDuration records how long one refresh took.
func RecordRefreshDuration(latencyMs float64) {
	global().refreshDuration.Observe(latencyMs)
}

// UpdateWorkerCount sets the number of refresh workers.
func UpdateWorkerCount(count int) {
	global().workerCount.Set(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	global().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	global().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	global().errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	global().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	global().systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	global().systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}

// RefreshInterval is how often the periodic gauges should be refreshed.
func RefreshInterval() time.Duration {
	return global().RefreshInterval()
}
