package world

import (
	"context"
	"testing"

	"github.com/kadirpekel/worldcore/core"
	"github.com/kadirpekel/worldcore/storage/memstore"
)

func TestNewChatSetsCurrentChat(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	w := core.NewWorld("w1", "World One")
	_ = store.SaveWorld(ctx, w)

	mgr := NewChatManager(store)
	c, err := mgr.NewChat(ctx, w, "first chat")
	if err != nil {
		t.Fatalf("NewChat: %v", err)
	}
	if w.CurrentChat() == nil || *w.CurrentChat() != c.ID {
		t.Fatalf("expected current chat to be %q", c.ID)
	}
}

func TestDeleteChatCascadesMessagesAndClearsCurrent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	w := core.NewWorld("w1", "World One")
	agent := &core.Agent{ID: "agent-1"}
	w.AddAgent(agent)
	_ = store.SaveWorld(ctx, w)

	mgr := NewChatManager(store)
	c, _ := mgr.NewChat(ctx, w, "chat")
	_ = store.AppendMessage(ctx, "agent-1", core.AgentMessage{MessageID: "m1", ChatID: &c.ID})

	if err := mgr.DeleteChat(ctx, w, c.ID); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if w.CurrentChat() != nil {
		t.Fatal("expected current chat cleared after deleting it")
	}
	msgs, _ := store.LoadMessages(ctx, "agent-1", &c.ID)
	if len(msgs) != 0 {
		t.Fatalf("expected cascaded message deletion, got %+v", msgs)
	}
}

func TestBranchChatFromMessageLeavesCurrentChatUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	w := core.NewWorld("w1", "World One")
	agent := &core.Agent{ID: "agent-1"}
	w.AddAgent(agent)
	_ = store.SaveWorld(ctx, w)

	mgr := NewChatManager(store)
	source, err := mgr.NewChat(ctx, w, "source")
	if err != nil {
		t.Fatalf("NewChat: %v", err)
	}
	originalCurrent := w.CurrentChat()

	msgs := []core.AgentMessage{
		{MessageID: "userA", Role: core.RoleUser, Content: "A", ChatID: &source.ID},
		{MessageID: "asstA", Role: core.RoleAssistant, Content: "A'", ChatID: &source.ID},
		{MessageID: "userB", Role: core.RoleUser, Content: "B", ChatID: &source.ID},
		{MessageID: "asstB", Role: core.RoleAssistant, Content: "B'", ChatID: &source.ID},
	}
	for _, m := range msgs {
		_ = store.AppendMessage(ctx, "agent-1", m)
	}
	agent.SetMemory(msgs)

	newChat, copiedMessageCount, err := mgr.BranchChatFromMessage(ctx, w, source.ID, "asstA", "branch")
	if err != nil {
		t.Fatalf("BranchChatFromMessage: %v", err)
	}
	if copiedMessageCount != 2 {
		t.Fatalf("expected 2 copied messages, got %d", copiedMessageCount)
	}
	if w.CurrentChat() == nil || *w.CurrentChat() != *originalCurrent {
		t.Fatalf("expected current chat to remain %q, got %v", *originalCurrent, w.CurrentChat())
	}

	branched, _ := store.LoadMessages(ctx, "agent-1", &newChat.ID)
	if len(branched) != 2 || branched[0].MessageID != "userA" || branched[1].MessageID != "asstA" {
		t.Fatalf("expected branched memory [userA, asstA], got %+v", branched)
	}

	sourceMsgs, _ := store.LoadMessages(ctx, "agent-1", &source.ID)
	if len(sourceMsgs) != 4 {
		t.Fatalf("expected source chat untouched, got %+v", sourceMsgs)
	}
}

func TestBranchChatFromMessageFallsBackWhenNoLaterAssistantMessage(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	w := core.NewWorld("w1", "World One")
	agent := &core.Agent{ID: "agent-1"}
	w.AddAgent(agent)
	_ = store.SaveWorld(ctx, w)

	mgr := NewChatManager(store)
	source, _ := mgr.NewChat(ctx, w, "source")

	msgs := []core.AgentMessage{
		{MessageID: "userA", Role: core.RoleUser, Content: "A", ChatID: &source.ID},
		{MessageID: "asstA", Role: core.RoleAssistant, Content: "A'", ChatID: &source.ID},
		{MessageID: "userB", Role: core.RoleUser, Content: "B", ChatID: &source.ID},
	}
	for _, m := range msgs {
		_ = store.AppendMessage(ctx, "agent-1", m)
	}
	agent.SetMemory(msgs)

	newChat, copiedMessageCount, err := mgr.BranchChatFromMessage(ctx, w, source.ID, "userB", "branch")
	if err != nil {
		t.Fatalf("BranchChatFromMessage: %v", err)
	}
	if copiedMessageCount != 3 {
		t.Fatalf("expected no later assistant message to fall back to cutting at userB itself, got %d copied", copiedMessageCount)
	}
	branched, _ := store.LoadMessages(ctx, "agent-1", &newChat.ID)
	if len(branched) != 3 || branched[2].MessageID != "userB" {
		t.Fatalf("expected branch [userA, asstA, userB], got %+v", branched)
	}
}

func TestEditUserMessageTruncatesFollowingMessages(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	w := core.NewWorld("w1", "World One")
	agent := &core.Agent{ID: "agent-1"}
	w.AddAgent(agent)
	_ = store.SaveWorld(ctx, w)

	chatID := "chat-1"
	msgs := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleUser, Content: "first", ChatID: &chatID},
		{MessageID: "m2", Role: core.RoleAssistant, Content: "reply", ChatID: &chatID},
		{MessageID: "m3", Role: core.RoleUser, Content: "second", ChatID: &chatID},
	}
	for _, m := range msgs {
		_ = store.AppendMessage(ctx, "agent-1", m)
	}
	agent.SetMemory(msgs)

	engine := NewEditEngine(store)
	edited, err := engine.EditUserMessage(ctx, w, chatID, "m1", "first, edited")
	if err != nil {
		t.Fatalf("EditUserMessage: %v", err)
	}
	if edited.Content != "first, edited" {
		t.Fatalf("got %q", edited.Content)
	}

	remaining, _ := store.LoadMessages(ctx, "agent-1", &chatID)
	if len(remaining) != 1 || remaining[0].MessageID != "m1" {
		t.Fatalf("expected only m1 to remain, got %+v", remaining)
	}
	if len(agent.Memory()) != 1 {
		t.Fatalf("expected agent in-memory state to match storage, got %+v", agent.Memory())
	}
}

func TestEditUserMessageRejectedWhileProcessing(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	w := core.NewWorld("w1", "World One")
	agent := &core.Agent{ID: "agent-1"}
	w.AddAgent(agent)
	_ = store.SaveWorld(ctx, w)

	chatID := "chat-1"
	msg := core.AgentMessage{MessageID: "m1", Role: core.RoleUser, Content: "first", ChatID: &chatID}
	_ = store.AppendMessage(ctx, "agent-1", msg)
	agent.SetMemory([]core.AgentMessage{msg})

	w.SetProcessing(true)

	engine := NewEditEngine(store)
	_, err := engine.EditUserMessage(ctx, w, chatID, "m1", "edited")
	if err == nil {
		t.Fatal("expected edit to be rejected while a turn is in progress")
	}
	if !core.IsCode(err, core.CodeConflict) {
		t.Fatalf("expected a conflict error, got %v", err)
	}
}
