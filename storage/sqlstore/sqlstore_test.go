package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/kadirpekel/worldcore/core"
)

func TestSaveLoadWorldRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	w := core.NewWorld("w1", "World One")
	w.Description = "a test world"
	if err := s.SaveWorld(ctx, w); err != nil {
		t.Fatalf("SaveWorld: %v", err)
	}

	a := &core.Agent{ID: "agent-1", Name: "assistant", Provider: "openai", Model: "gpt-test", AutoReply: true}
	if err := s.SaveAgent(ctx, w.ID, a); err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}

	loaded, err := s.LoadWorld(ctx, "w1")
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	if loaded.Description != "a test world" {
		t.Fatalf("got description %q", loaded.Description)
	}
	got, ok := loaded.Agent("agent-1")
	if !ok || !got.AutoReply {
		t.Fatalf("expected agent-1 loaded with AutoReply, got %+v ok=%v", got, ok)
	}
}

func TestAppendAndLoadMessagesOrderedAndScoped(t *testing.T) {
	ctx := context.Background()
	s, err := Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	chatA, chatB := "chat-a", "chat-b"
	msgs := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleUser, Content: "first", ChatID: &chatA, CreatedAt: time.Now()},
		{MessageID: "m2", Role: core.RoleAssistant, Content: "second", ChatID: &chatA, CreatedAt: time.Now()},
		{MessageID: "m3", Role: core.RoleUser, Content: "other chat", ChatID: &chatB, CreatedAt: time.Now()},
	}
	for _, m := range msgs {
		if err := s.AppendMessage(ctx, "agent-1", m); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	scoped, err := s.LoadMessages(ctx, "agent-1", &chatA)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(scoped) != 2 || scoped[0].MessageID != "m1" || scoped[1].MessageID != "m2" {
		t.Fatalf("expected ordered chat-scoped messages, got %+v", scoped)
	}

	all, err := s.LoadMessages(ctx, "agent-1", nil)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 total messages, got %d", len(all))
	}
}

func TestDeleteWorldCascades(t *testing.T) {
	ctx := context.Background()
	s, err := Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	w := core.NewWorld("w1", "World One")
	_ = s.SaveWorld(ctx, w)
	_ = s.SaveAgent(ctx, w.ID, &core.Agent{ID: "agent-1"})
	_ = s.AppendMessage(ctx, "agent-1", core.AgentMessage{MessageID: "m1"})

	if err := s.DeleteWorld(ctx, "w1"); err != nil {
		t.Fatalf("DeleteWorld: %v", err)
	}
	if _, err := s.LoadWorld(ctx, "w1"); err == nil {
		t.Fatal("expected world to be gone after delete")
	}
	remaining, _ := s.LoadMessages(ctx, "agent-1", nil)
	if len(remaining) != 0 {
		t.Fatalf("expected cascaded message deletion, got %+v", remaining)
	}
}
