package observability

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewMetricsDisabledIsNil(t *testing.T) {
	if m := NewMetrics(nil); m != nil {
		t.Fatal("expected nil metrics for nil config")
	}
	if m := NewMetrics(&MetricsConfig{Enabled: false}); m != nil {
		t.Fatal("expected nil metrics when disabled")
	}
}

func TestNilMetricsMethodsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordLLMCall("openai", "gpt-4o", time.Millisecond)
	m.RecordToolCall("shell", time.Millisecond)
	m.RecordTurn("world-1")
	m.SetBusQueueDepth("world-1", 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("expected 503 from disabled metrics handler, got %d", rec.Code)
	}
}

func TestNewMetricsEnabledRecordsWithoutPanic(t *testing.T) {
	m := NewMetrics(&MetricsConfig{Enabled: true})
	if m == nil {
		t.Fatal("expected non-nil metrics")
	}
	m.RecordLLMCall("openai", "gpt-4o", 10*time.Millisecond)
	m.RecordLLMTokens("openai", "gpt-4o", 100, 50)
	m.RecordLLMError("openai", "gpt-4o", true)
	m.RecordToolCall("shell", time.Millisecond)
	m.RecordToolError("shell")
	m.RecordTurn("world-1")
	m.RecordTurnLimited("world-1")
	m.SetBusQueueDepth("world-1", 5)
	m.RecordBusDropped("world-1")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestInitTracerProviderDisabledIsNoop(t *testing.T) {
	tp, err := InitTracerProvider(TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("InitTracerProvider: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil no-op provider")
	}
}

func TestStartTurnProducesSpan(t *testing.T) {
	if _, err := InitTracerProvider(TracingConfig{Enabled: false}); err != nil {
		t.Fatalf("InitTracerProvider: %v", err)
	}
	ctx, span := StartTurn(context.Background(), "world-1", "agent-1", "chat-1")
	if ctx == nil || span == nil {
		t.Fatal("expected non-nil context and span")
	}
	span.End()
}
