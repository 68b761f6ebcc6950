package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docshield"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	// Fallback metrics
	FallbackAttempts *prometheus.CounterVec
	FallbackDuration *prometheus.HistogramVec

	// Recovery metrics
	RecoveryActions *prometheus.CounterVec

	// Reporting metrics
	Reports *prometheus.CounterVec

	// Batch metrics
	FilesProcessed     *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	FilesSucceeded     int64 `json:"files_succeeded"`
	FilesFailed        int64 `json:"files_failed"`
	FilesSkipped       int64 `json:"files_skipped"`
	FallbackAttempts   int64 `json:"fallback_attempts"`
	FallbackSuccesses  int64 `json:"fallback_successes"`
	RecoveryActions    int64 `json:"recovery_actions"`
	Reports            int64 `json:"reports"`
	BreakerTransitions int64 `json:"breaker_transitions"`
	HTTPRequests       int64 `json:"http_requests"`
}

// NewMetrics creates a new metrics collector backed by its own registry,
// so several instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"breaker"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"breaker", "from", "to"},
		),

		FallbackAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_attempts_total",
				Help:      "Total number of fallback strategy attempts",
			},
			[]string{"strategy", "outcome"},
		),
		FallbackDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fallback_duration_seconds",
				Help:      "Fallback strategy execution time in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"strategy"},
		),

		RecoveryActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_actions_total",
				Help:      "Total number of recovery actions taken",
			},
			[]string{"action", "kind", "outcome"},
		),

		Reports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "error_reports_total",
				Help:      "Total number of error reports generated",
			},
			[]string{"severity", "kind"},
		),

		FilesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_processed_total",
				Help:      "Total number of files processed by outcome",
			},
			[]string{"outcome"},
		),
		ConversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Per-file conversion time in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"format"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of active WebSocket connections",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.HTTPRequests++
	m.mu.Unlock()
}

// SetBreakerState sets the gauge for a breaker. The value is the
// numeric state (0=closed, 1=half_open, 2=open).
func (m *Metrics) SetBreakerState(breaker string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(breaker).Set(float64(state))
}

// RecordBreakerTransition records a breaker state change
func (m *Metrics) RecordBreakerTransition(breaker, from, to string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(breaker, from, to).Inc()

	m.mu.Lock()
	m.snapshot.BreakerTransitions++
	m.mu.Unlock()
}

// RecordFallbackAttempt records one strategy attempt
func (m *Metrics) RecordFallbackAttempt(strategy string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.FallbackAttempts.WithLabelValues(strategy, outcome(success)).Inc()
	m.FallbackDuration.WithLabelValues(strategy).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.FallbackAttempts++
	if success {
		m.snapshot.FallbackSuccesses++
	}
	m.mu.Unlock()
}

// RecordRecoveryAction records a recovery action outcome
func (m *Metrics) RecordRecoveryAction(action, kind string, success bool) {
	if m == nil {
		return
	}
	m.RecoveryActions.WithLabelValues(action, kind, outcome(success)).Inc()

	m.mu.Lock()
	m.snapshot.RecoveryActions++
	m.mu.Unlock()
}

// RecordReport records a generated error report
func (m *Metrics) RecordReport(severity, kind string) {
	if m == nil {
		return
	}
	m.Reports.WithLabelValues(severity, kind).Inc()

	m.mu.Lock()
	m.snapshot.Reports++
	m.mu.Unlock()
}

// File outcomes
const (
	FileSucceeded = "succeeded"
	FileFailed    = "failed"
	FileSkipped   = "skipped"
)

// RecordFile records a processed file. Format is the file extension
// without the dot, or "unknown".
func (m *Metrics) RecordFile(result, format string, duration time.Duration) {
	if m == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	m.FilesProcessed.WithLabelValues(result).Inc()
	m.ConversionDuration.WithLabelValues(format).Observe(duration.Seconds())

	m.mu.Lock()
	switch result {
	case FileSucceeded:
		m.snapshot.FilesSucceeded++
	case FileSkipped:
		m.snapshot.FilesSkipped++
	default:
		m.snapshot.FilesFailed++
	}
	m.mu.Unlock()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Snapshot returns the current counter values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
