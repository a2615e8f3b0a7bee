package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kadirpekel/worldcore/core"
)

func TestSaveLoadWorldRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w := core.NewWorld("w1", "World One")
	w.TurnLimit = 42
	if err := s.SaveWorld(ctx, w); err != nil {
		t.Fatalf("SaveWorld: %v", err)
	}

	got, err := s.LoadWorld(ctx, "w1")
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	if got.TurnLimit != 42 {
		t.Fatalf("got TurnLimit %d, want 42", got.TurnLimit)
	}
}

func TestAppendMessageRecoversFromTruncatedJournal(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.AppendMessage(ctx, "agent-1", core.AgentMessage{MessageID: "m1", Content: "one"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := s.AppendMessage(ctx, "agent-1", core.AgentMessage{MessageID: "m2", Content: "two"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	// Simulate a crash mid-write: truncate the journal so the trailing
	// element is incomplete JSON.
	path := filepath.Join(dir, "messages", "agent-1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	truncated := data[:len(data)-10]
	if err := os.WriteFile(path, truncated, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	msgs, err := s.LoadMessages(ctx, "agent-1", nil)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].MessageID != "m1" {
		t.Fatalf("expected to recover only m1, got %+v", msgs)
	}
}

func TestDeleteAgentRemovesMessages(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := core.NewWorld("w1", "World One")
	if err := s.SaveWorld(ctx, w); err != nil {
		t.Fatalf("SaveWorld: %v", err)
	}
	a := &core.Agent{ID: "agent-1"}
	if err := s.SaveAgent(ctx, "w1", a); err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}
	if err := s.AppendMessage(ctx, "agent-1", core.AgentMessage{MessageID: "m1"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if err := s.DeleteAgent(ctx, "w1", "agent-1"); err != nil {
		t.Fatalf("DeleteAgent: %v", err)
	}

	msgs, err := s.LoadMessages(ctx, "agent-1", nil)
	if err != nil {
		t.Fatalf("LoadMessages after delete: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages after delete, got %+v", msgs)
	}
}
