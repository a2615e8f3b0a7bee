// Package storage defines the persistence contract for worlds, agents,
// chats and agent messages, plus three backends that implement it: an
// in-memory store for tests and ephemeral runs, a file-tree store with
// an append-only journal, and a SQL store over database/sql.
package storage

import (
	"context"

	"github.com/kadirpekel/worldcore/core"
)

// Storage persists the full world/agent/chat/message graph. Every
// method takes a context and returns a *core.Error on failure so
// callers never need to string-match error text.
type Storage interface {
	SaveWorld(ctx context.Context, w *core.World) error
	LoadWorld(ctx context.Context, id string) (*core.World, error)
	DeleteWorld(ctx context.Context, id string) error
	ListWorlds(ctx context.Context) ([]*core.World, error)

	SaveAgent(ctx context.Context, worldID string, a *core.Agent) error
	DeleteAgent(ctx context.Context, worldID, agentID string) error

	SaveChat(ctx context.Context, c *core.Chat) error
	LoadChat(ctx context.Context, id string) (*core.Chat, error)
	DeleteChat(ctx context.Context, id string) error
	ListChats(ctx context.Context, worldID string) ([]*core.Chat, error)

	AppendMessage(ctx context.Context, agentID string, msg core.AgentMessage) error
	LoadMessages(ctx context.Context, agentID string, chatID *string) ([]core.AgentMessage, error)
	ReplaceMessages(ctx context.Context, agentID string, msgs []core.AgentMessage) error
	DeleteMessagesFromChat(ctx context.Context, agentID, chatID string) error

	Close() error
}
