// Package msgprep parses raw message content, filters an agent's
// memory down to what is safe and useful to hand an LLM, and prepares
// the final request payload for a turn.
package msgprep

import (
	"encoding/json"
	"strings"

	"github.com/kadirpekel/worldcore/core"
)

type toolResultEnvelope struct {
	Type       string `json:"__type"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// ParseContent recognizes the enhanced-string tool-result envelope
// ({"__type":"tool_result", "tool_call_id":..., "content":...}).
// Anything else — invalid JSON, unrelated JSON, plain text — passes
// through verbatim tagged with defaultRole.
func ParseContent(raw string, defaultRole core.Role) (role core.Role, content string, toolCallID string) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return defaultRole, raw, ""
	}
	var env toolResultEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return defaultRole, raw, ""
	}
	if env.Type != "tool_result" {
		return defaultRole, raw, ""
	}
	return core.RoleTool, env.Content, env.ToolCallID
}

// clientToolPrefix marks a tool_call as handled entirely on the client
// side (never dispatched through C6); such calls, and their orphaned
// responses, must never reach a provider.
const clientToolPrefix = "client."

// FilterClientSide runs the five-step, order-preserving, non-mutating
// filter pipeline over an agent's memory before it is sent to an LLM:
//  1. drop tool_calls entries whose function name starts with "client."
//     (case-sensitive)
//  2. drop assistant messages whose tool_calls become empty after step 1
//  3. drop tool messages whose tool_call_id no longer matches any
//     remaining assistant tool_call id
//  4. drop tool messages missing tool_call_id
//  5. preserve relative order of surviving messages
func FilterClientSide(msgs []core.AgentMessage) []core.AgentMessage {
	hadToolCalls := make([]bool, len(msgs))
	step1 := make([]core.AgentMessage, 0, len(msgs))
	for i, m := range msgs {
		hadToolCalls[i] = len(m.ToolCalls) > 0
		if len(m.ToolCalls) == 0 {
			step1 = append(step1, m)
			continue
		}
		kept := make([]core.ToolCallRequest, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			if !strings.HasPrefix(tc.Name, clientToolPrefix) {
				kept = append(kept, tc)
			}
		}
		m.ToolCalls = kept
		step1 = append(step1, m)
	}

	step2 := make([]core.AgentMessage, 0, len(step1))
	for i, m := range step1 {
		if hadToolCalls[i] && len(m.ToolCalls) == 0 {
			continue
		}
		step2 = append(step2, m)
	}

	remainingCalls := make(map[string]bool)
	for _, m := range step2 {
		for _, tc := range m.ToolCalls {
			remainingCalls[tc.ID] = true
		}
	}

	out := make([]core.AgentMessage, 0, len(step2))
	for _, m := range step2 {
		if m.Role == core.RoleTool {
			if m.ToolCallID == "" || !remainingCalls[m.ToolCallID] {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// PrepareForLLM builds the final ordered message slice for one LLM
// call: the agent's filtered, chat-scoped history followed by the
// message that triggered this turn.
func PrepareForLLM(agent *core.Agent, current core.AgentMessage, history []core.AgentMessage, chatID *string) []core.AgentMessage {
	scoped := make([]core.AgentMessage, 0, len(history))
	for _, m := range history {
		if m.SameChat(chatID) {
			scoped = append(scoped, m)
		}
	}
	filtered := FilterClientSide(scoped)

	out := make([]core.AgentMessage, 0, len(filtered)+2)
	if agent.SystemPrompt != "" {
		out = append(out, core.AgentMessage{Role: core.RoleSystem, Content: agent.SystemPrompt})
	}
	out = append(out, filtered...)
	out = append(out, current)
	return out
}
