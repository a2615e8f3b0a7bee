package world

import (
	"context"
	"testing"

	"github.com/kadirpekel/worldcore/core"
	"github.com/kadirpekel/worldcore/llm"
	"github.com/kadirpekel/worldcore/observability"
	"github.com/kadirpekel/worldcore/storage/memstore"
	"github.com/kadirpekel/worldcore/tools"
)

func newTestFacade() *Facade {
	return NewFacade(memstore.New(), llm.NewRegistry(), tools.NewRegistry())
}

func TestCreateWorldAndAddAgent(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade()

	w, err := f.CreateWorld(ctx, "Test World", "a world for testing")
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}

	agent := &core.Agent{Name: "assistant", Provider: "openai", Model: "gpt-test"}
	if err := f.AddAgent(ctx, w, agent); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if agent.ID != "assistant" {
		t.Fatalf("expected derived id 'assistant', got %q", agent.ID)
	}

	got, ok := w.Agent("assistant")
	if !ok || got.Name != "assistant" {
		t.Fatalf("expected agent registered in world, got %+v ok=%v", got, ok)
	}
}

func TestSubmitMessageAppendsToEveryAgent(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade()

	w, _ := f.CreateWorld(ctx, "Test World", "")
	a1 := &core.Agent{Name: "alice"}
	a2 := &core.Agent{Name: "bob"}
	_ = f.AddAgent(ctx, w, a1)
	_ = f.AddAgent(ctx, w, a2)

	if _, err := f.SubmitMessage(ctx, w, "hello all"); err != nil {
		t.Fatalf("SubmitMessage: %v", err)
	}

	if len(a1.Memory()) != 1 || len(a2.Memory()) != 1 {
		t.Fatalf("expected both agents to receive the message, got %d and %d", len(a1.Memory()), len(a2.Memory()))
	}
}

func TestDeleteWorldCleansUpBusAndSubscribers(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade()

	w, _ := f.CreateWorld(ctx, "Test World", "")
	if _, ok := f.Bus(w.ID); !ok {
		t.Fatal("expected bus to exist after CreateWorld")
	}

	if err := f.DeleteWorld(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWorld: %v", err)
	}
	if _, ok := f.Bus(w.ID); ok {
		t.Fatal("expected bus to be torn down after DeleteWorld")
	}
}

func TestFacadeWiresMetricsIntoBusAndSubscribers(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade()
	f.SetMetrics(observability.NewMetrics(&observability.MetricsConfig{Enabled: true}))

	w, err := f.CreateWorld(ctx, "Metriced World", "")
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}
	if _, err := f.SubmitMessage(ctx, w, "hello"); err != nil {
		t.Fatalf("SubmitMessage: %v", err)
	}
}
