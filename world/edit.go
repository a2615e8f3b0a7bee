package world

import (
	"context"
	"time"

	"github.com/kadirpekel/worldcore/core"
	"github.com/kadirpekel/worldcore/storage"
)

// EditEngine supports editing a past user message: the message keeps
// its MessageID and position, and every message after it (across every
// agent's memory scoped to that chat) is removed.
type EditEngine struct {
	store storage.Storage
}

func NewEditEngine(store storage.Storage) *EditEngine {
	return &EditEngine{store: store}
}

// RemoveMessagesFrom deletes, for every agent in w, every chat-scoped
// message at or after fromMessageID's position, returning the removed
// count per agent.
func (e *EditEngine) RemoveMessagesFrom(ctx context.Context, w *core.World, chatID, fromMessageID string) (map[string]int, error) {
	removed := make(map[string]int)
	for agentID, agent := range w.Agents() {
		history, err := e.store.LoadMessages(ctx, agentID, &chatID)
		if err != nil {
			return nil, err
		}
		kept, n := removeFrom(history, fromMessageID)
		removed[agentID] = n
		if n == 0 {
			continue
		}
		if err := replaceChatScoped(ctx, e.store, agent, agentID, chatID, kept); err != nil {
			return nil, err
		}
	}
	return removed, nil
}

func removeFrom(history []core.AgentMessage, fromMessageID string) ([]core.AgentMessage, int) {
	for i, m := range history {
		if m.MessageID == fromMessageID {
			return history[:i], len(history) - i
		}
	}
	return history, 0
}

// replaceChatScoped rewrites an agent's full memory, substituting
// chat-scoped entries for kept while leaving every message belonging
// to a different chat (or to no chat) untouched, and refreshes the
// in-memory Agent to match.
func replaceChatScoped(ctx context.Context, store storage.Storage, agent *core.Agent, agentID, chatID string, kept []core.AgentMessage) error {
	full, err := store.LoadMessages(ctx, agentID, nil)
	if err != nil {
		return err
	}
	out := make([]core.AgentMessage, 0, len(full))
	keptAppended := false
	for _, m := range full {
		if m.ChatID != nil && *m.ChatID == chatID {
			if !keptAppended {
				out = append(out, kept...)
				keptAppended = true
			}
			continue
		}
		out = append(out, m)
	}
	if !keptAppended {
		out = append(out, kept...)
	}
	if err := store.ReplaceMessages(ctx, agentID, out); err != nil {
		return err
	}
	agent.SetMemory(out)
	return nil
}

// EditUserMessage replaces the content of an existing user message
// (preserving its MessageID and position) then removes everything
// after it in every agent's chat-scoped memory, clearing the way for
// the world facade to resubmit it as a new turn.
func (e *EditEngine) EditUserMessage(ctx context.Context, w *core.World, chatID, messageID, newContent string) (core.AgentMessage, error) {
	if w.Processing() {
		return core.AgentMessage{}, core.Conflictf("PROCESSING_IN_PROGRESS: cannot edit while a turn is in progress")
	}

	var edited core.AgentMessage
	found := false

	for agentID, agent := range w.Agents() {
		history, err := e.store.LoadMessages(ctx, agentID, &chatID)
		if err != nil {
			return core.AgentMessage{}, err
		}
		for i, m := range history {
			if m.MessageID == messageID && m.Role == core.RoleUser {
				history[i].Content = newContent
				history[i].CreatedAt = time.Now()
				edited = history[i]
				found = true

				kept := history[:i+1]
				if err := replaceChatScoped(ctx, e.store, agent, agentID, chatID, kept); err != nil {
					return core.AgentMessage{}, err
				}
				break
			}
		}
	}

	if !found {
		return core.AgentMessage{}, core.NotFoundf("user message %q not found in chat %q", messageID, chatID)
	}
	return edited, nil
}
