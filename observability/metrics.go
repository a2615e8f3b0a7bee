package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the orchestrator. A nil
// *Metrics is valid and every method on it is a no-op, so components
// can hold onto a possibly-nil Metrics without guarding every call.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	turnsTotal    *prometheus.CounterVec
	turnsLimited  *prometheus.CounterVec
	busQueueDepth *prometheus.GaugeVec
	busDropped    *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance, or returns nil if cfg is nil
// or disabled.
func NewMetrics(cfg *MetricsConfig) *Metrics {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	cfg.setDefaults()

	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}
	m.initLLM()
	m.initTool()
	m.initWorld()
	return m
}

func (m *Metrics) initLLM() {
	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "calls_total",
		Help: "Total number of LLM provider calls.",
	}, []string{"provider", "model"})

	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "call_duration_seconds",
		Help: "LLM call duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"provider", "model"})

	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_input_total",
		Help: "Total prompt tokens sent to LLM providers.",
	}, []string{"provider", "model"})

	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_output_total",
		Help: "Total completion tokens received from LLM providers.",
	}, []string{"provider", "model"})

	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "errors_total",
		Help: "Total LLM call errors.",
	}, []string{"provider", "model", "fatal"})

	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors)
}

func (m *Metrics) initTool() {
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total tool invocations.",
	}, []string{"tool_name"})

	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "call_duration_seconds",
		Help: "Tool execution duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"tool_name"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total tool execution errors.",
	}, []string{"tool_name"})

	m.registry.MustRegister(m.toolCalls, m.toolCallDuration, m.toolErrors)
}

func (m *Metrics) initWorld() {
	m.turnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "world", Name: "turns_total",
		Help: "Total turns recorded per world.",
	}, []string{"world_id"})

	m.turnsLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "world", Name: "turns_limited_total",
		Help: "Total turns suppressed by a world's turn limit.",
	}, []string{"world_id"})

	m.busQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.config.Namespace, Subsystem: "bus", Name: "queue_depth",
		Help: "Pending items in a world's event bus dispatch queue.",
	}, []string{"world_id"})

	m.busDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "bus", Name: "dropped_events_total",
		Help: "Total events dropped from a full subscriber buffer.",
	}, []string{"world_id"})

	m.registry.MustRegister(m.turnsTotal, m.turnsLimited, m.busQueueDepth, m.busDropped)
}

func (m *Metrics) RecordLLMCall(provider, model string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(provider, model).Inc()
	m.llmCallDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func (m *Metrics) RecordLLMTokens(provider, model string, input, output int) {
	if m == nil {
		return
	}
	m.llmTokensInput.WithLabelValues(provider, model).Add(float64(input))
	m.llmTokensOutput.WithLabelValues(provider, model).Add(float64(output))
}

func (m *Metrics) RecordLLMError(provider, model string, fatal bool) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(provider, model, boolLabel(fatal)).Inc()
}

func (m *Metrics) RecordToolCall(toolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

func (m *Metrics) RecordToolError(toolName string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName).Inc()
}

func (m *Metrics) RecordTurn(worldID string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(worldID).Inc()
}

func (m *Metrics) RecordTurnLimited(worldID string) {
	if m == nil {
		return
	}
	m.turnsLimited.WithLabelValues(worldID).Inc()
}

func (m *Metrics) SetBusQueueDepth(worldID string, depth int) {
	if m == nil {
		return
	}
	m.busQueueDepth.WithLabelValues(worldID).Set(float64(depth))
}

func (m *Metrics) RecordBusDropped(worldID string) {
	if m == nil {
		return
	}
	m.busDropped.WithLabelValues(worldID).Inc()
}

// Handler returns the Prometheus scrape endpoint, or a 503 responder
// if metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
