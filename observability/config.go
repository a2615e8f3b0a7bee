// Package observability wires Prometheus metrics and OpenTelemetry
// tracing around world turns, LLM calls, and tool calls. Both are
// opt-in and nil-safe: an unconfigured Metrics or Tracer behaves as a
// no-op so callers never need to branch on whether observability is
// enabled.
package observability

// Config configures the observability system for a worldcore process.
type Config struct {
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on span export. Default: false.
	Enabled bool `yaml:"enabled,omitempty"`

	// Exporter selects the trace exporter. Only "stdout" is currently
	// supported; anything else falls back to the no-op provider.
	Exporter string `yaml:"exporter,omitempty"`

	// ServiceName identifies this process in emitted spans.
	ServiceName string `yaml:"service_name,omitempty"`

	// SamplingRate is the fraction of turns sampled, 0.0-1.0.
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`
}

func (c *TracingConfig) setDefaults() {
	if c.Exporter == "" {
		c.Exporter = "stdout"
	}
	if c.ServiceName == "" {
		c.ServiceName = "worldcore"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns on metrics collection. Default: false.
	Enabled bool `yaml:"enabled,omitempty"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace,omitempty"`
}

func (c *MetricsConfig) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "worldcore"
	}
}
