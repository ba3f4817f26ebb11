// Package metrics provides Prometheus metrics export for the AI engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/inkwell/store"
)

const (
	namespace = "inkwell"
	subsystem = "ai"
)

// PrometheusExporter exports AI metrics in Prometheus format.
// A nil *PrometheusExporter is valid and records nothing.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Chat metrics
	chatTurns   *prometheus.CounterVec
	chatLatency *prometheus.HistogramVec
	chatActive  prometheus.Gauge

	toolCalls *prometheus.CounterVec
	proposals *prometheus.CounterVec
	tasks     *prometheus.CounterVec

	// LLM token metrics
	llmTokens *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.chatTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chat_turns_total",
			Help:      "Total number of streamed model turns",
		},
		[]string{"mode", "status"},
	)
	e.chatLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chat_turn_seconds",
			Help:      "Model turn duration in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"mode"},
	)
	e.chatActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chat_active",
			Help:      "Number of turns currently streaming",
		},
	)
	e.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tool_calls_total",
			Help:      "Total number of tool executions",
		},
		[]string{"tool_name", "status"},
	)
	e.proposals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "proposals_total",
			Help:      "Proposal resolutions by action and final status",
		},
		[]string{"action", "status"},
	)
	e.tasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "background_tasks_total",
			Help:      "Background task runs",
		},
		[]string{"task", "status"},
	)
	e.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"token_type"},
	)

	registry.MustRegister(
		e.chatTurns,
		e.chatLatency,
		e.chatActive,
		e.toolCalls,
		e.proposals,
		e.tasks,
		e.llmTokens,
	)
	return e
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// TurnStarted marks a turn as streaming.
func (e *PrometheusExporter) TurnStarted() {
	if e == nil {
		return
	}
	e.chatActive.Inc()
}

// RecordTurn records a finished turn. status is done, error or canceled.
func (e *PrometheusExporter) RecordTurn(mode, status string, latency time.Duration) {
	if e == nil {
		return
	}
	e.chatActive.Dec()
	e.chatTurns.WithLabelValues(mode, status).Inc()
	e.chatLatency.WithLabelValues(mode).Observe(latency.Seconds())
}

// RecordToolCall records a tool execution.
func (e *PrometheusExporter) RecordToolCall(toolName string, err error) {
	if e == nil {
		return
	}
	e.toolCalls.WithLabelValues(toolName, status(err)).Inc()
}

// RecordProposal records a proposal resolution.
func (e *PrometheusExporter) RecordProposal(action store.ProposalAction, status store.ProposalStatus) {
	if e == nil {
		return
	}
	e.proposals.WithLabelValues(string(action), string(status)).Inc()
}

// RecordTask records a background task run.
func (e *PrometheusExporter) RecordTask(name string, err error) {
	if e == nil {
		return
	}
	e.tasks.WithLabelValues(name, status(err)).Inc()
}

// RecordLLMTokens records LLM token usage.
func (e *PrometheusExporter) RecordLLMTokens(prompt, completion int) {
	if e == nil {
		return
	}
	e.llmTokens.WithLabelValues("prompt").Add(float64(prompt))
	e.llmTokens.WithLabelValues("completion").Add(float64(completion))
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	if e == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
