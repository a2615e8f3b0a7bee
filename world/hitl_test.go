package world

import (
	"context"
	"testing"
	"time"

	"github.com/kadirpekel/worldcore/bus"
)

func TestHITLRequestResolvedByRespond(t *testing.T) {
	b := bus.New()
	defer b.Close()
	h := NewHITLCoordinator(b)

	done := make(chan HITLResponse, 1)
	go func() {
		resp, err := h.Request(context.Background(), "chat-1", "agent-1", "allow this?", time.Second)
		if err != nil {
			t.Errorf("Request: %v", err)
			return
		}
		done <- resp
	}()

	time.Sleep(20 * time.Millisecond)
	h.mu.Lock()
	var reqID string
	for id := range h.pending {
		reqID = id
	}
	h.mu.Unlock()
	if reqID == "" {
		t.Fatal("expected a pending request")
	}

	if err := h.Respond(reqID, true, "go ahead"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	select {
	case resp := <-done:
		if !resp.Approved || resp.Input != "go ahead" || resp.TimedOut {
			t.Fatalf("unexpected response: %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resolution")
	}
}

func TestHITLRequestAutoResolvesOnTimeout(t *testing.T) {
	b := bus.New()
	defer b.Close()
	h := NewHITLCoordinator(b)

	resp, err := h.Request(context.Background(), "chat-1", "agent-1", "approve?", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Approved || !resp.TimedOut {
		t.Fatalf("expected deny-by-default timeout, got %+v", resp)
	}
}

func TestRespondReturnsNotFoundForUnknownRequest(t *testing.T) {
	b := bus.New()
	defer b.Close()
	h := NewHITLCoordinator(b)

	if err := h.Respond("does-not-exist", true, ""); err == nil {
		t.Fatal("expected not-found error for unknown request id")
	}
}

func TestHITLRequestCancelledByContext(t *testing.T) {
	b := bus.New()
	defer b.Close()
	h := NewHITLCoordinator(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.Request(ctx, "chat-1", "agent-1", "approve?", time.Second)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation")
	}
}
