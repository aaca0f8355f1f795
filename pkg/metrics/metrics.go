// Package metrics provides Prometheus metrics instrumentation for Attaché.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for Attaché.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Chat metrics
	chatTurns    *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	// Model metrics
	modelCalls    *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	modelInflight prometheus.Gauge
	fallbacks     prometheus.Counter

	// Tool metrics
	toolExecutions   *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	safetyRejections *prometheus.CounterVec

	// HTTP metrics
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Path    string

	TurnDurationBuckets  []float64
	ModelDurationBuckets []float64
	ToolDurationBuckets  []float64
	HTTPDurationBuckets  []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		Path:                 "/metrics",
		TurnDurationBuckets:  []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		ModelDurationBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		ToolDurationBuckets:  []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		HTTPDurationBuckets:  []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	m := &Manager{
		registry: prometheus.NewRegistry(),
		enabled:  true,
	}

	m.chatTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attache_chat_turns_total",
			Help: "Completed chat turns by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)
	m.turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attache_chat_turn_duration_seconds",
			Help:    "End-to-end chat turn duration in seconds",
			Buckets: cfg.TurnDurationBuckets,
		},
		[]string{"mode"},
	)

	m.modelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attache_model_calls_total",
			Help: "Outbound model invocations by model and outcome",
		},
		[]string{"model", "outcome"},
	)
	m.modelDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attache_model_call_duration_seconds",
			Help:    "Model invocation duration in seconds",
			Buckets: cfg.ModelDurationBuckets,
		},
		[]string{"model"},
	)
	m.modelInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "attache_model_calls_inflight",
			Help: "Current number of in-flight outbound model calls",
		},
	)
	m.fallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "attache_model_fallbacks_total",
			Help: "Router fallback invocations after a primary failure",
		},
	)

	m.toolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attache_tool_executions_total",
			Help: "Tool executions by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)
	m.toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attache_tool_duration_seconds",
			Help:    "Tool execution duration in seconds",
			Buckets: cfg.ToolDurationBuckets,
		},
		[]string{"tool"},
	)
	m.safetyRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attache_safety_rejections_total",
			Help: "Safety gate rejections by rule",
		},
		[]string{"rule"},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attache_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: cfg.HTTPDurationBuckets,
		},
		[]string{"method", "path"},
	)
	m.httpConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "attache_http_active_connections",
			Help: "Current number of active HTTP connections",
		},
	)

	m.registry.MustRegister(
		m.chatTurns, m.turnDuration,
		m.modelCalls, m.modelDuration, m.modelInflight, m.fallbacks,
		m.toolExecutions, m.toolDuration, m.safetyRejections,
		m.httpRequests, m.httpDuration, m.httpConnections,
	)

	return m
}

// Handler returns the Prometheus scrape handler.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordChatTurn records a completed chat turn.
func (m *Manager) RecordChatTurn(mode, outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.chatTurns.WithLabelValues(mode, outcome).Inc()
	m.turnDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordModelCall records one outbound model invocation.
func (m *Manager) RecordModelCall(model, outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.modelCalls.WithLabelValues(model, outcome).Inc()
	m.modelDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// ModelCallStarted increments the in-flight model call gauge.
func (m *Manager) ModelCallStarted() {
	if !m.enabled {
		return
	}
	m.modelInflight.Inc()
}

// ModelCallFinished decrements the in-flight model call gauge.
func (m *Manager) ModelCallFinished() {
	if !m.enabled {
		return
	}
	m.modelInflight.Dec()
}

// RecordFallback records a router fallback invocation.
func (m *Manager) RecordFallback() {
	if !m.enabled {
		return
	}
	m.fallbacks.Inc()
}

// RecordToolExecution records one tool execution.
func (m *Manager) RecordToolExecution(tool, outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.toolExecutions.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordSafetyRejection records a safety gate rejection by rule name.
func (m *Manager) RecordSafetyRejection(rule string) {
	if !m.enabled {
		return
	}
	m.safetyRejections.WithLabelValues(rule).Inc()
}

// RecordHTTPRequest records an HTTP request with method, path, and status.
func (m *Manager) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncActiveConnections increments the active HTTP connections count.
func (m *Manager) IncActiveConnections() {
	if !m.enabled {
		return
	}
	m.httpConnections.Inc()
}

// DecActiveConnections decrements the active HTTP connections count.
func (m *Manager) DecActiveConnections() {
	if !m.enabled {
		return
	}
	m.httpConnections.Dec()
}
