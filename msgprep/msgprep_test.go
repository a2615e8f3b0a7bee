package msgprep

import (
	"testing"

	"github.com/kadirpekel/worldcore/core"
)

func TestParseContentToolResultEnvelope(t *testing.T) {
	raw := `{"__type":"tool_result","tool_call_id":"tc1","content":"42"}`
	role, content, toolCallID := ParseContent(raw, core.RoleUser)
	if role != core.RoleTool || content != "42" || toolCallID != "tc1" {
		t.Fatalf("got role=%v content=%q toolCallID=%q", role, content, toolCallID)
	}
}

func TestParseContentPlainTextPassesThrough(t *testing.T) {
	role, content, toolCallID := ParseContent("hello there", core.RoleUser)
	if role != core.RoleUser || content != "hello there" || toolCallID != "" {
		t.Fatalf("got role=%v content=%q toolCallID=%q", role, content, toolCallID)
	}
}

func TestParseContentUnrelatedJSON(t *testing.T) {
	raw := `{"foo":"bar"}`
	role, content, _ := ParseContent(raw, core.RoleAssistant)
	if role != core.RoleAssistant || content != raw {
		t.Fatalf("expected passthrough for unrelated JSON, got role=%v content=%q", role, content)
	}
}

func TestFilterClientSideDropsOrphanedToolMessage(t *testing.T) {
	msgs := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleTool, ToolCallID: "missing", Content: "result"},
		{MessageID: "m2", Role: core.RoleUser, Content: "hi"},
	}
	out := FilterClientSide(msgs)
	if len(out) != 1 || out[0].MessageID != "m2" {
		t.Fatalf("expected orphaned tool message dropped, got %+v", out)
	}
}

func TestFilterClientSideDropsToolMessageMissingID(t *testing.T) {
	msgs := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleTool, Content: "result"},
		{MessageID: "m2", Role: core.RoleUser, Content: "hi"},
	}
	out := FilterClientSide(msgs)
	if len(out) != 1 || out[0].MessageID != "m2" {
		t.Fatalf("expected tool message without tool_call_id dropped, got %+v", out)
	}
}

func TestFilterClientSideKeepsMatchedToolCall(t *testing.T) {
	msgs := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleAssistant, Content: "", ToolCalls: []core.ToolCallRequest{{ID: "tc1", Name: "read_file"}}},
		{MessageID: "m2", Role: core.RoleTool, ToolCallID: "tc1", Content: "file contents"},
	}
	out := FilterClientSide(msgs)
	if len(out) != 2 {
		t.Fatalf("expected both messages kept, got %+v", out)
	}
}

func TestFilterClientSideKeepsPlainTextAssistantMessage(t *testing.T) {
	msgs := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleAssistant, Content: "just text, no tool calls"},
	}
	out := FilterClientSide(msgs)
	if len(out) != 1 || out[0].MessageID != "m1" {
		t.Fatalf("expected plain-text assistant message kept, got %+v", out)
	}
}

func TestFilterClientSideDropsClientPrefixedToolCallsAndOrphans(t *testing.T) {
	msgs := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleAssistant, ToolCalls: []core.ToolCallRequest{{ID: "tc1", Name: "client.copyToClipboard"}}},
		{MessageID: "m2", Role: core.RoleTool, ToolCallID: "tc1", Content: "copied"},
		{MessageID: "m3", Role: core.RoleUser, Content: "next"},
	}
	out := FilterClientSide(msgs)
	if len(out) != 1 || out[0].MessageID != "m3" {
		t.Fatalf("expected client.* tool_call and its orphaned assistant/tool messages dropped, got %+v", out)
	}
}

func TestFilterClientSideMixedToolCallsKeepsNonClientEntries(t *testing.T) {
	msgs := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleAssistant, ToolCalls: []core.ToolCallRequest{
			{ID: "tc1", Name: "client.notify"},
			{ID: "tc2", Name: "read_file"},
		}},
		{MessageID: "m2", Role: core.RoleTool, ToolCallID: "tc1", Content: "notified"},
		{MessageID: "m3", Role: core.RoleTool, ToolCallID: "tc2", Content: "file contents"},
	}
	out := FilterClientSide(msgs)
	if len(out) != 2 {
		t.Fatalf("expected assistant message (trimmed to tc2) and its tool response kept, got %+v", out)
	}
	if len(out[0].ToolCalls) != 1 || out[0].ToolCalls[0].ID != "tc2" {
		t.Fatalf("expected client.* entry stripped from surviving assistant message, got %+v", out[0])
	}
	if out[1].MessageID != "m3" {
		t.Fatalf("expected orphaned tc1 tool response dropped, got %+v", out[1])
	}
}

func TestFilterClientSideDoesNotMutateInput(t *testing.T) {
	original := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleAssistant, ToolCalls: []core.ToolCallRequest{{ID: "tc1", Name: "client.x"}}},
	}
	_ = FilterClientSide(original)
	if len(original[0].ToolCalls) != 1 || original[0].ToolCalls[0].Name != "client.x" {
		t.Fatalf("expected input slice left untouched, got %+v", original)
	}
}

func TestPrepareForLLMScopesToChat(t *testing.T) {
	chatA := "chat-a"
	chatB := "chat-b"
	agent := &core.Agent{ID: "a1", SystemPrompt: "you are helpful"}
	history := []core.AgentMessage{
		{MessageID: "m1", Role: core.RoleUser, Content: "in chat a", ChatID: &chatA},
		{MessageID: "m2", Role: core.RoleUser, Content: "in chat b", ChatID: &chatB},
	}
	current := core.AgentMessage{MessageID: "m3", Role: core.RoleUser, Content: "now", ChatID: &chatA}

	out := PrepareForLLM(agent, current, history, &chatA)
	if len(out) != 3 {
		t.Fatalf("expected system + 1 history + current = 3, got %d: %+v", len(out), out)
	}
	if out[0].Role != core.RoleSystem {
		t.Fatalf("expected system prompt first, got %+v", out[0])
	}
	if out[1].MessageID != "m1" {
		t.Fatalf("expected m1 from chat a, got %+v", out[1])
	}
	if out[2].MessageID != "m3" {
		t.Fatalf("expected current message last, got %+v", out[2])
	}
}
