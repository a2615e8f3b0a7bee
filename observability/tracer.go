package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InitTracerProvider builds the global TracerProvider for cfg. A
// disabled or unrecognized exporter falls back to the no-op provider
// so instrumented code never has to check whether tracing is on.
func InitTracerProvider(cfg TracingConfig) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), nil
	}
	cfg.setDefaults()

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return noop.NewTracerProvider(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the named tracer from the globally installed
// TracerProvider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartTurn opens a span covering one agent's processing of a
// triggering message — from provider call through tool-call
// continuations to the final appended reply.
func StartTurn(ctx context.Context, worldID, agentID, chatID string) (context.Context, trace.Span) {
	return Tracer("worldcore/world").Start(ctx, "world.turn",
		trace.WithAttributes(
			attrString("world.id", worldID),
			attrString("agent.id", agentID),
			attrString("chat.id", chatID),
		),
	)
}

// StartToolCall opens a span covering a single tool invocation inside
// a turn.
func StartToolCall(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return Tracer("worldcore/tools").Start(ctx, "tool.call",
		trace.WithAttributes(attrString("tool.name", toolName)),
	)
}
