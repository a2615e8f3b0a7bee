// Package world wires together storage, the bus, agent subscribers
// and tools into the orchestrator's public surface: chat/session
// management, message editing, human-in-the-loop coordination, and the
// facade every transport (CLI, HTTP, websocket) calls through.
package world

import (
	"context"
	"time"

	"github.com/kadirpekel/worldcore/core"
	"github.com/kadirpekel/worldcore/ids"
	"github.com/kadirpekel/worldcore/storage"
)

// ChatManager creates, restores, branches and deletes chats within a
// world, keeping each agent's persisted memory in sync.
type ChatManager struct {
	store storage.Storage
}

func NewChatManager(store storage.Storage) *ChatManager {
	return &ChatManager{store: store}
}

// createChat persists a fresh chat scoped to w and adds it to the
// world's chat set, without touching w's current-chat pointer — the
// current-chat decision belongs to each caller (NewChat makes it
// current; BranchChatFromMessage deliberately does not).
func (m *ChatManager) createChat(ctx context.Context, w *core.World, name string) (*core.Chat, error) {
	c := &core.Chat{
		ID:        ids.New(),
		WorldID:   w.ID,
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := m.store.SaveChat(ctx, c); err != nil {
		return nil, err
	}
	w.AddChat(c)
	return c, nil
}

// NewChat creates a chat scoped to w, makes it current, and returns it.
func (m *ChatManager) NewChat(ctx context.Context, w *core.World, name string) (*core.Chat, error) {
	c, err := m.createChat(ctx, w, name)
	if err != nil {
		return nil, err
	}
	id := c.ID
	w.SetCurrentChat(&id)
	return c, nil
}

// RestoreChat loads a persisted chat into w and makes it current.
func (m *ChatManager) RestoreChat(ctx context.Context, w *core.World, chatID string) (*core.Chat, error) {
	c, err := m.store.LoadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c.WorldID != w.ID {
		return nil, core.Validationf("chat %q does not belong to world %q", chatID, w.ID)
	}
	w.AddChat(c)
	id := c.ID
	w.SetCurrentChat(&id)
	return c, nil
}

// DeleteChat removes a chat and cascades: every agent's messages
// scoped to it are deleted too. If chatID is the world's current
// chat, session mode is turned off (CurrentChatID becomes nil).
func (m *ChatManager) DeleteChat(ctx context.Context, w *core.World, chatID string) error {
	for agentID := range w.Agents() {
		if err := m.store.DeleteMessagesFromChat(ctx, agentID, chatID); err != nil {
			return err
		}
	}
	if err := m.store.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	w.RemoveChat(chatID)
	if current := w.CurrentChat(); current != nil && *current == chatID {
		w.SetCurrentChat(nil)
	}
	return nil
}

// BranchChatFromMessage creates a new chat whose agent memories are
// copies of the source chat's memories truncated through fromMessageID
// (or, if that message isn't an assistant message, through the next
// assistant message after it), letting the user explore an alternate
// continuation without disturbing the original timeline. The source
// chat and the world's current chat are left unchanged; messageId
// values are preserved on the copies, only chatId is reassigned.
func (m *ChatManager) BranchChatFromMessage(ctx context.Context, w *core.World, sourceChatID, fromMessageID, newName string) (*core.Chat, int, error) {
	newChat, err := m.createChat(ctx, w, "Branch of "+newName)
	if err != nil {
		return nil, 0, err
	}

	copiedMessageCount := 0
	for agentID, agent := range w.Agents() {
		history, err := m.store.LoadMessages(ctx, agentID, &sourceChatID)
		if err != nil {
			return nil, 0, err
		}
		truncated := truncateThrough(history, fromMessageID)
		rescoped := make([]core.AgentMessage, len(truncated))
		for i, msg := range truncated {
			msg.ChatID = &newChat.ID
			rescoped[i] = msg
		}
		for _, msg := range rescoped {
			if err := m.store.AppendMessage(ctx, agentID, msg); err != nil {
				return nil, 0, err
			}
		}
		agent.SetMemory(append(agent.Memory(), rescoped...))
		copiedMessageCount += len(rescoped)
	}
	return newChat, copiedMessageCount, nil
}

// truncateThrough cuts history at the message with the given id,
// inclusive. If that message is not an assistant message, it walks
// forward to the next assistant message in history and cuts there
// instead; if no assistant message follows, it falls back to cutting
// at the originally named message.
func truncateThrough(history []core.AgentMessage, messageID string) []core.AgentMessage {
	idx := -1
	for i, m := range history {
		if m.MessageID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return history
	}

	cut := idx
	if history[idx].Role != core.RoleAssistant {
		cut = idx
		for j := idx; j < len(history); j++ {
			if history[j].Role == core.RoleAssistant {
				cut = j
				break
			}
		}
	}

	out := make([]core.AgentMessage, cut+1)
	copy(out, history[:cut+1])
	return out
}

// ListChats returns every chat belonging to w.
func (m *ChatManager) ListChats(ctx context.Context, w *core.World) ([]*core.Chat, error) {
	return m.store.ListChats(ctx, w.ID)
}
