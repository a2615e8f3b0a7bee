// Package memstore is an in-memory storage.Storage implementation used
// by tests and ephemeral runs. Nothing survives process restart.
package memstore

import (
	"context"
	"sync"

	"github.com/kadirpekel/worldcore/core"
)

type Store struct {
	mu       sync.RWMutex
	worlds   map[string]*core.World
	chats    map[string]*core.Chat
	messages map[string][]core.AgentMessage // agentID -> ordered messages
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		worlds:   make(map[string]*core.World),
		chats:    make(map[string]*core.Chat),
		messages: make(map[string][]core.AgentMessage),
	}
}

func (s *Store) SaveWorld(ctx context.Context, w *core.World) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worlds[w.ID] = w
	return nil
}

func (s *Store) LoadWorld(ctx context.Context, id string) (*core.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[id]
	if !ok {
		return nil, core.NotFoundf("world %q not found", id)
	}
	return w, nil
}

func (s *Store) DeleteWorld(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.worlds, id)
	return nil
}

func (s *Store) ListWorlds(ctx context.Context) ([]*core.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.World, 0, len(s.worlds))
	for _, w := range s.worlds {
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) SaveAgent(ctx context.Context, worldID string, a *core.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.worlds[worldID]
	if !ok {
		return core.NotFoundf("world %q not found", worldID)
	}
	w.AddAgent(a)
	return nil
}

func (s *Store) DeleteAgent(ctx context.Context, worldID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.worlds[worldID]; ok {
		w.RemoveAgent(agentID)
	}
	delete(s.messages, agentID)
	return nil
}

func (s *Store) SaveChat(ctx context.Context, c *core.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[c.ID] = c
	return nil
}

func (s *Store) LoadChat(ctx context.Context, id string) (*core.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, core.NotFoundf("chat %q not found", id)
	}
	return c, nil
}

func (s *Store) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, id)
	return nil
}

func (s *Store) ListChats(ctx context.Context, worldID string) ([]*core.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Chat, 0)
	for _, c := range s.chats {
		if c.WorldID == worldID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) AppendMessage(ctx context.Context, agentID string, msg core.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[agentID] = append(s.messages[agentID], msg)
	return nil
}

func (s *Store) LoadMessages(ctx context.Context, agentID string, chatID *string) ([]core.AgentMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[agentID]
	if chatID == nil {
		out := make([]core.AgentMessage, len(all))
		copy(out, all)
		return out, nil
	}
	out := make([]core.AgentMessage, 0, len(all))
	for _, m := range all {
		if m.SameChat(chatID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) ReplaceMessages(ctx context.Context, agentID string, msgs []core.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[agentID] = msgs
	return nil
}

func (s *Store) DeleteMessagesFromChat(ctx context.Context, agentID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[agentID]
	out := all[:0:0]
	for _, m := range all {
		if !(m.ChatID != nil && *m.ChatID == chatID) {
			out = append(out, m)
		}
	}
	s.messages[agentID] = out
	return nil
}

func (s *Store) Close() error { return nil }
