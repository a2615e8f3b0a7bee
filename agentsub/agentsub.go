// Package agentsub implements the per-agent bus subscriber: deciding
// whether an agent should respond to an incoming message, driving the
// LLM call (including the tool-call continuation loop), and
// publishing the resulting events and persisted memory.
package agentsub

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/worldcore/bus"
	"github.com/kadirpekel/worldcore/core"
	"github.com/kadirpekel/worldcore/ids"
	"github.com/kadirpekel/worldcore/llm"
	"github.com/kadirpekel/worldcore/msgprep"
	"github.com/kadirpekel/worldcore/observability"
	"github.com/kadirpekel/worldcore/storage"
	"github.com/kadirpekel/worldcore/tools"
)

// maxToolContinuations bounds the assistant-calls-tool / tool-replies
// / assistant-calls-tool-again loop within a single turn, so a
// misbehaving model cannot spin forever.
const maxToolContinuations = 8

// Subscriber drives one agent's reaction to bus events: whether to
// respond, the LLM call, any tool-call continuation, and memory
// persistence.
type Subscriber struct {
	agent     *core.Agent
	world     *core.World
	bus       *bus.Bus
	store     storage.Storage
	providers *llm.Registry
	toolReg   *tools.Registry

	encoding *tiktoken.Tiktoken
	metrics  *observability.Metrics

	unsubscribe func()
}

// New constructs a Subscriber for agent within world, wiring it to bus
// for event delivery, store for persistence, providers for LLM calls,
// and toolReg for tool execution.
func New(agent *core.Agent, world *core.World, b *bus.Bus, store storage.Storage, providers *llm.Registry, toolReg *tools.Registry) *Subscriber {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Subscriber{
		agent:     agent,
		world:     world,
		bus:       b,
		store:     store,
		providers: providers,
		toolReg:   toolReg,
		encoding:  enc,
	}
}

// Start subscribes this agent to incoming messages on the world bus.
// Call Stop to unsubscribe.
func (s *Subscriber) Start() {
	s.unsubscribe = s.bus.Subscribe(bus.KindMessage, func(ev bus.Event) {
		msg, ok := ev.Payload.(core.AgentMessage)
		if !ok {
			return
		}
		if msg.AgentID == s.agent.ID {
			return // never react to our own just-sent message
		}
		if !s.shouldRespond(msg) {
			return
		}
		go s.process(context.Background(), msg)
	})
}

func (s *Subscriber) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// SetMetrics attaches a metrics sink. A nil metrics is fine and every
// recorder call becomes a no-op, so this is safe to skip entirely.
func (s *Subscriber) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// mentionPattern matches an @mention that opens a paragraph: at the
// start of the text or of any line, after optional spaces or tabs.
var mentionPattern = regexp.MustCompile(`(?m)^[ \t]*@([a-zA-Z0-9_-]+)`)

// paragraphMentions extracts the set of paragraph-beginning @mentions
// from content, compared case-insensitively after kebab normalization
// (so "@Alice-Smith" matches agent id/name "alice-smith").
func paragraphMentions(content string) map[string]bool {
	mentions := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		mentions[ids.Kebab(m[1])] = true
	}
	return mentions
}

// shouldRespond decides whether this agent reacts to msg:
//  1. never react to our own message (handled by the caller).
//  2. if any paragraph (the text or one of its lines) opens with an
//     @mention, respond
//     iff this agent is named, regardless of sender or autoReply.
//  3. otherwise respond when autoReply is set, or when the sender is
//     human and this agent is the world's mainAgent.
//  4. suppressed entirely once the chat's turn limit is reached.
func (s *Subscriber) shouldRespond(msg core.AgentMessage) bool {
	chatID := ""
	if msg.ChatID != nil {
		chatID = *msg.ChatID
	}

	isHuman := msg.Role == core.RoleUser

	mentions := paragraphMentions(msg.Content)
	if len(mentions) > 0 {
		if !mentions[ids.Kebab(s.agent.ID)] && !mentions[ids.Kebab(s.agent.Name)] {
			return false
		}
	} else {
		isMainAgent := isHuman && s.world.MainAgent != "" && s.world.MainAgent == s.agent.ID
		if !s.agent.AutoReply && !isMainAgent {
			return false
		}
	}

	turns := s.world.RecordTurn(chatID, isHuman)
	if turns > s.world.TurnLimit {
		s.metrics.RecordTurnLimited(s.world.ID)
		s.bus.Publish(bus.KindLog, map[string]any{
			"category": "agentsub",
			"message":  "turn limit reached",
			"data":     map[string]any{"agentId": s.agent.ID, "chatId": chatID, "turns": turns},
		})
		return false
	}
	return true
}

// process runs the seven-step turn pipeline: prepare history, call
// the model, stream/publish, handle tool calls (looping up to
// maxToolContinuations), persist memory, and publish the final
// message event.
func (s *Subscriber) process(ctx context.Context, trigger core.AgentMessage) {
	chatID := trigger.ChatID
	chatKey := ""
	if chatID != nil {
		chatKey = *chatID
	}
	s.bus.ClearCancelled(chatKey)

	s.world.SetProcessing(true)
	defer s.world.SetProcessing(false)

	ctx, span := observability.StartTurn(ctx, s.world.ID, s.agent.ID, chatKey)
	defer span.End()

	s.metrics.RecordTurn(s.world.ID)

	history := s.agent.Memory()
	current := trigger
	messageID := ids.New()

	s.bus.Publish(bus.KindActivity, map[string]any{"agentId": s.agent.ID, "state": "thinking", "chatId": chatKey})

	provider, err := s.providers.Get(s.agent.Provider)
	if err != nil {
		s.publishError(chatKey, messageID, err)
		return
	}

	prepared := msgprep.PrepareForLLM(s.agent, current, history, chatID)
	req := llm.Request{
		Model:       s.agent.Model,
		Messages:    toLLMMessages(prepared),
		Tools:       s.availableToolSpecs(),
		Temperature: s.agent.Temperature,
		MaxTokens:   s.agent.MaxTokens,
	}

	s.bus.Publish(bus.KindSSE, map[string]any{"type": "start", "messageId": messageID, "agentId": s.agent.ID})

	finalContent, toolCallsServed, err := s.runWithToolLoop(ctx, provider, req, chatKey, messageID)
	if err != nil {
		s.publishError(chatKey, messageID, err)
		s.bus.Publish(bus.KindSSE, map[string]any{"type": "error", "messageId": messageID, "error": err.Error()})
		return
	}

	s.bus.Publish(bus.KindSSE, map[string]any{"type": "end", "messageId": messageID})

	out := core.AgentMessage{
		MessageID: messageID,
		AgentID:   s.agent.ID,
		Role:      core.RoleAssistant,
		Content:   finalContent,
		Sender:    s.agent.Name,
		ChatID:    chatID,
		CreatedAt: time.Now(),
	}
	s.agent.AppendMemory(out)
	if s.store != nil {
		if err := s.store.AppendMessage(ctx, s.agent.ID, out); err != nil {
			s.bus.Publish(bus.KindLog, map[string]any{"category": "agentsub", "message": "persist failed", "data": map[string]any{"error": err.Error()}})
		}
	}

	s.agent.LastActive = time.Now()
	s.agent.LLMCallCount += toolCallsServed + 1

	s.bus.Publish(bus.KindMessage, out)
	s.bus.Publish(bus.KindActivity, map[string]any{"agentId": s.agent.ID, "state": "idle", "chatId": chatKey})
}

// runWithToolLoop drives the assistant-calls-tool / tool-replies loop.
// It returns the final text content and how many tool round-trips it
// took.
func (s *Subscriber) runWithToolLoop(ctx context.Context, provider llm.Provider, req llm.Request, chatKey, messageID string) (string, int, error) {
	rounds := 0
	for {
		if s.bus.Cancelled(chatKey) {
			return "", rounds, fmt.Errorf("agentsub: cancelled")
		}

		start := time.Now()
		resp, err := provider.Generate(ctx, req)
		s.metrics.RecordLLMCall(s.agent.Provider, s.agent.Model, time.Since(start))
		if err != nil {
			var fatal *llm.FatalError
			s.metrics.RecordLLMError(s.agent.Provider, s.agent.Model, errors.As(err, &fatal))
			return "", rounds, fmt.Errorf("agentsub: llm call failed: %w", err)
		}
		s.metrics.RecordLLMTokens(s.agent.Provider, s.agent.Model, resp.PromptTokens, resp.CompletionTokens)

		if resp.Type == llm.TextResponse {
			return resp.Content, rounds, nil
		}

		if rounds >= maxToolContinuations {
			return "", rounds, fmt.Errorf("agentsub: exceeded %d tool continuations", maxToolContinuations)
		}
		rounds++

		assistantMsg := llm.Message{Role: "assistant", ToolCalls: resp.ToolCalls}
		req.Messages = append(req.Messages, assistantMsg)

		for _, tc := range resp.ToolCalls {
			toolUseID := tc.ID
			s.bus.Publish(bus.KindTool, map[string]any{"type": "tool-start", "toolUseId": toolUseID, "name": tc.Name, "messageId": messageID})

			result, err := s.callTool(ctx, tc)
			if err != nil {
				s.bus.Publish(bus.KindTool, map[string]any{"type": "tool-error", "toolUseId": toolUseID, "error": err.Error()})
				req.Messages = append(req.Messages, llm.Message{Role: "tool", ToolCallID: toolUseID, Content: "error: " + err.Error()})
				continue
			}
			s.bus.Publish(bus.KindTool, map[string]any{"type": "tool-result", "toolUseId": toolUseID, "output": result.Output, "isError": result.IsError})
			req.Messages = append(req.Messages, llm.Message{Role: "tool", ToolCallID: toolUseID, Content: result.Output})
		}
	}
}

func (s *Subscriber) callTool(ctx context.Context, tc llm.ToolCall) (tools.Result, error) {
	ctx, span := observability.StartToolCall(ctx, tc.Name)
	defer span.End()

	t, err := s.toolReg.Get(tc.Name)
	if err != nil {
		return tools.Result{}, err
	}
	toolCtx := tools.Context{
		WorkingDirectory: s.world.WorkingDirectory(),
		WorldID:          s.world.ID,
	}

	start := time.Now()
	result, err := t.Call(ctx, toolCtx, tc.Arguments)
	s.metrics.RecordToolCall(tc.Name, time.Since(start))
	if err != nil || result.IsError {
		s.metrics.RecordToolError(tc.Name)
	}
	return result, err
}

func (s *Subscriber) availableToolSpecs() []llm.ToolSpec {
	var specs []llm.ToolSpec
	for _, t := range s.toolReg.List() {
		specs = append(specs, llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}
	return specs
}

func (s *Subscriber) publishError(chatKey, messageID string, err error) {
	s.bus.Publish(bus.KindSystem, map[string]any{"level": "error", "message": err.Error(), "chatId": chatKey, "messageId": messageID})
}

func toLLMMessages(msgs []core.AgentMessage) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		lm := llm.Message{Role: string(m.Role), Content: m.Content, Name: m.Sender, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			lm.ToolCalls = append(lm.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		out = append(out, lm)
	}
	return out
}

// EstimateTokens returns a rough token count for content using the
// same cl100k_base encoding the OpenAI and Anthropic model families
// are tokenized with, for pre-call budget checks.
func (s *Subscriber) EstimateTokens(content string) int {
	if s.encoding == nil {
		return len(content) / 4
	}
	return len(s.encoding.Encode(content, nil, nil))
}
