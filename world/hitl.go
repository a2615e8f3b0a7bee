package world

import (
	"context"
	"sync"
	"time"

	"github.com/kadirpekel/worldcore/bus"
	"github.com/kadirpekel/worldcore/core"
	"github.com/kadirpekel/worldcore/ids"
)

// HITLRequest is one pending human-in-the-loop approval/input request
// raised by a tool call or agent decision point.
type HITLRequest struct {
	ID        string
	ChatID    string
	AgentID   string
	Prompt    string
	CreatedAt time.Time
	Deadline  time.Time
}

// HITLResponse is the resolution of a HITLRequest, either supplied by
// a human or synthesized by the timeout auto-resolver.
type HITLResponse struct {
	RequestID string
	Approved  bool
	Input     string
	TimedOut  bool
}

// HITLCoordinator tracks outstanding human-in-the-loop requests and
// resolves them either from an explicit Respond call or, once the
// deadline passes, automatically.
type HITLCoordinator struct {
	bus *bus.Bus

	mu      sync.Mutex
	pending map[string]chan HITLResponse
}

func NewHITLCoordinator(b *bus.Bus) *HITLCoordinator {
	return &HITLCoordinator{bus: b, pending: make(map[string]chan HITLResponse)}
}

// Request raises a new HITL request, publishes it on the bus, and
// blocks until Respond is called or timeout elapses — at which point
// it auto-resolves with TimedOut true and Approved false (deny by
// default; a tool call a human never saw should not proceed).
func (h *HITLCoordinator) Request(ctx context.Context, chatID, agentID, prompt string, timeout time.Duration) (HITLResponse, error) {
	req := HITLRequest{
		ID:        ids.New(),
		ChatID:    chatID,
		AgentID:   agentID,
		Prompt:    prompt,
		CreatedAt: time.Now(),
		Deadline:  time.Now().Add(timeout),
	}

	ch := make(chan HITLResponse, 1)
	h.mu.Lock()
	h.pending[req.ID] = ch
	h.mu.Unlock()

	h.bus.Publish(bus.KindSystem, map[string]any{"type": "hitl-request", "request": req})

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(timeout):
		h.mu.Lock()
		delete(h.pending, req.ID)
		h.mu.Unlock()
		resp := HITLResponse{RequestID: req.ID, Approved: false, TimedOut: true}
		h.bus.Publish(bus.KindSystem, map[string]any{"type": "hitl-timeout", "requestId": req.ID})
		return resp, nil
	case <-ctx.Done():
		h.mu.Lock()
		delete(h.pending, req.ID)
		h.mu.Unlock()
		return HITLResponse{}, ctx.Err()
	}
}

// Respond resolves a pending request. Returns a not_found error if no
// request with requestID is currently pending (already resolved or
// timed out).
func (h *HITLCoordinator) Respond(requestID string, approved bool, input string) error {
	h.mu.Lock()
	ch, ok := h.pending[requestID]
	if ok {
		delete(h.pending, requestID)
	}
	h.mu.Unlock()

	if !ok {
		return core.NotFoundf("no pending HITL request %q", requestID)
	}
	ch <- HITLResponse{RequestID: requestID, Approved: approved, Input: input}
	return nil
}
