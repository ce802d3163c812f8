// Package metrics provides Prometheus metrics for the judge engine,
// trimmed from the teacher's internal/metrics/metrics.go down to the
// collectors this domain actually has: HTTP traffic, evaluation throughput,
// sandbox/concurrency pressure, and live-status WebSocket connections. The
// teacher's AI-provider, billing, and business (signups/churn/subscription)
// metric families have no equivalent surface here and were dropped (see
// DESIGN.md); the HTTP and system metric shapes, and the promauto wiring
// pattern, carry over unchanged.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds every Prometheus collector the judge engine exports.
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec

	// Evaluation Metrics (spec §4.D/§4.E)
	EvaluationsTotal       *prometheus.CounterVec
	EvaluationDuration     *prometheus.HistogramVec
	CompileDuration        *prometheus.HistogramVec
	BatchSize              prometheus.Histogram
	BatchRecompiledTotal   prometheus.Counter

	// Sandbox/Concurrency Metrics (spec §4.C/§5)
	SandboxAcquireDuration *prometheus.HistogramVec
	SandboxesInFlight      prometheus.Gauge
	GateQueueDepth         prometheus.Gauge
	GateWaitDuration       prometheus.Histogram

	// Live Status WebSocket Metrics (spec §4.F)
	WebSocketConnectionsGauge prometheus.Gauge
	WebSocketEventsTotal      *prometheus.CounterVec

	// System Metrics
	BuildInfo   *prometheus.GaugeVec
	StartupTime prometheus.Gauge
}

// Get returns the singleton Metrics instance.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "judge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "judge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "judge",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	m.HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "judge",
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"endpoint"},
	)

	m.EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "judge",
			Subsystem: "evaluation",
			Name:      "total",
			Help:      "Total number of submissions evaluated by language and verdict status",
		},
		[]string{"language", "status"},
	)

	m.EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "judge",
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "End-to-end evaluation duration in seconds, by language",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"language"},
	)

	m.CompileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "judge",
			Subsystem: "evaluation",
			Name:      "compile_duration_seconds",
			Help:      "Compile step duration in seconds, by language",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"language"},
	)

	m.BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "judge",
			Subsystem: "evaluation",
			Name:      "batch_size",
			Help:      "Number of configurations per optimized-batch request",
			Buckets:   prometheus.LinearBuckets(1, 10, 10),
		},
	)

	m.BatchRecompiledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "judge",
			Subsystem: "evaluation",
			Name:      "batch_recompiled_total",
			Help:      "Total number of batch configurations that forced a recompile due to a schema change",
		},
	)

	m.SandboxAcquireDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "judge",
			Subsystem: "sandbox",
			Name:      "acquire_duration_seconds",
			Help:      "Time spent acquiring a sandbox, by backend",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"backend"},
	)

	m.SandboxesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "judge",
			Subsystem: "sandbox",
			Name:      "in_flight",
			Help:      "Number of sandboxes currently acquired",
		},
	)

	m.GateQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "judge",
			Subsystem: "limiter",
			Name:      "queue_depth",
			Help:      "Number of evaluations currently waiting on the concurrency gate",
		},
	)

	m.GateWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "judge",
			Subsystem: "limiter",
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for a concurrency gate slot",
			Buckets:   []float64{0, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	m.WebSocketConnectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "judge",
			Subsystem: "websocket",
			Name:      "connections",
			Help:      "Current number of live status WebSocket subscribers",
		},
	)

	m.WebSocketEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "judge",
			Subsystem: "websocket",
			Name:      "events_total",
			Help:      "Total number of status events published, by stage",
		},
		[]string{"stage"},
	)

	m.BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "judge",
			Subsystem: "build",
			Name:      "info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_date"},
	)

	m.StartupTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "judge",
			Subsystem: "server",
			Name:      "startup_timestamp",
			Help:      "Server startup timestamp",
		},
	)
	m.StartupTime.Set(float64(time.Now().Unix()))

	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(endpoint, method string, statusCode int, duration time.Duration, responseSize int) {
	status := statusCodeToLabel(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(endpoint).Observe(float64(responseSize))
}

// RecordEvaluation records one completed single-submission evaluation.
func (m *Metrics) RecordEvaluation(language, status string, duration time.Duration, compileDuration time.Duration) {
	m.EvaluationsTotal.WithLabelValues(language, status).Inc()
	m.EvaluationDuration.WithLabelValues(language).Observe(duration.Seconds())
	m.CompileDuration.WithLabelValues(language).Observe(compileDuration.Seconds())
}

// RecordBatch records one optimized-batch request's size and recompile count.
func (m *Metrics) RecordBatch(size, recompiledCount int) {
	m.BatchSize.Observe(float64(size))
	m.BatchRecompiledTotal.Add(float64(recompiledCount))
}

// RecordSandboxAcquire records how long acquiring a sandbox took.
func (m *Metrics) RecordSandboxAcquire(backend string, duration time.Duration) {
	m.SandboxAcquireDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordGateWait records how long an evaluation waited on the concurrency gate.
func (m *Metrics) RecordGateWait(duration time.Duration) {
	m.GateWaitDuration.Observe(duration.Seconds())
}

// RecordWebSocketEvent records one status event publish.
func (m *Metrics) RecordWebSocketEvent(stage string) {
	m.WebSocketEventsTotal.WithLabelValues(stage).Inc()
}

// SetBuildInfo sets the build_info gauge to 1 for the running build.
func (m *Metrics) SetBuildInfo(version, commit, buildDate string) {
	m.BuildInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

func statusCodeToLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
