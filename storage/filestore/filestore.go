// Package filestore persists worlds, chats and agent messages as a
// tree of JSON files under a base directory, with atomic
// write-temp-then-rename updates so a crash mid-write never corrupts
// the previous good state.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/kadirpekel/worldcore/core"
)

type Store struct {
	base string
	mu   sync.Mutex
}

// New returns a filestore rooted at base, creating the directory tree
// if it does not already exist.
func New(base string) (*Store, error) {
	for _, dir := range []string{"worlds", "chats", "messages"} {
		if err := os.MkdirAll(filepath.Join(base, dir), 0755); err != nil {
			return nil, core.StorageError(err, "creating %s directory", dir)
		}
	}
	return &Store{base: base}, nil
}

// writeJSONAtomic marshals v and writes it to path by writing to a
// sibling temp file and renaming over the destination, so readers
// never observe a partial write.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return core.StorageError(err, "marshaling %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return core.StorageError(err, "writing temp file for %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return core.StorageError(err, "renaming temp file into %s", path)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.NotFoundf("%s not found", path)
		}
		return core.StorageError(err, "reading %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.StorageError(err, "unmarshaling %s", path)
	}
	return nil
}

func (s *Store) worldPath(id string) string   { return filepath.Join(s.base, "worlds", id+".json") }
func (s *Store) chatPath(id string) string    { return filepath.Join(s.base, "chats", id+".json") }
func (s *Store) messagesPath(agentID string) string {
	return filepath.Join(s.base, "messages", agentID+".json")
}

func (s *Store) SaveWorld(ctx context.Context, w *core.World) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.worldPath(w.ID), w)
}

func (s *Store) LoadWorld(ctx context.Context, id string) (*core.World, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := core.NewWorld(id, "")
	if err := readJSON(s.worldPath(id), w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Store) DeleteWorld(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.worldPath(id)); err != nil && !os.IsNotExist(err) {
		return core.StorageError(err, "deleting world %s", id)
	}
	return nil
}

func (s *Store) ListWorlds(ctx context.Context) ([]*core.World, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(filepath.Join(s.base, "worlds"))
	if err != nil {
		return nil, core.StorageError(err, "listing worlds")
	}
	out := make([]*core.World, 0, len(entries))
	for _, e := range entries {
		id := trimJSON(e.Name())
		w := core.NewWorld(id, "")
		if err := readJSON(s.worldPath(id), w); err == nil {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) SaveAgent(ctx context.Context, worldID string, a *core.Agent) error {
	w, err := s.LoadWorld(ctx, worldID)
	if err != nil {
		return err
	}
	w.AddAgent(a)
	return s.SaveWorld(ctx, w)
}

func (s *Store) DeleteAgent(ctx context.Context, worldID, agentID string) error {
	w, err := s.LoadWorld(ctx, worldID)
	if err != nil {
		return err
	}
	w.RemoveAgent(agentID)
	if err := s.SaveWorld(ctx, w); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.messagesPath(agentID)); err != nil && !os.IsNotExist(err) {
		return core.StorageError(err, "deleting messages for agent %s", agentID)
	}
	return nil
}

func (s *Store) SaveChat(ctx context.Context, c *core.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.chatPath(c.ID), c)
}

func (s *Store) LoadChat(ctx context.Context, id string) (*core.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &core.Chat{}
	if err := readJSON(s.chatPath(id), c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.chatPath(id)); err != nil && !os.IsNotExist(err) {
		return core.StorageError(err, "deleting chat %s", id)
	}
	return nil
}

func (s *Store) ListChats(ctx context.Context, worldID string) ([]*core.Chat, error) {
	s.mu.Lock()
	entries, err := os.ReadDir(filepath.Join(s.base, "chats"))
	s.mu.Unlock()
	if err != nil {
		return nil, core.StorageError(err, "listing chats")
	}
	out := make([]*core.Chat, 0, len(entries))
	for _, e := range entries {
		id := trimJSON(e.Name())
		c, err := s.LoadChat(ctx, id)
		if err == nil && c.WorldID == worldID {
			out = append(out, c)
		}
	}
	return out, nil
}

// journal reads the (possibly truncated, if the process was killed
// mid-write) JSON array at path, recovering as many whole elements as
// possible rather than failing on the trailing partial element.
func (s *Store) journal(agentID string) ([]core.AgentMessage, error) {
	data, err := os.ReadFile(s.messagesPath(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.StorageError(err, "reading messages for agent %s", agentID)
	}
	var msgs []core.AgentMessage
	if err := json.Unmarshal(data, &msgs); err == nil {
		return msgs, nil
	}
	return recoverTruncatedArray(data), nil
}

// recoverTruncatedArray decodes as many whole top-level JSON array
// elements as a streaming decoder can manage before it hits the
// truncation point.
func recoverTruncatedArray(data []byte) []core.AgentMessage {
	dec := json.NewDecoder(bytes.NewReader(data))
	var msgs []core.AgentMessage
	if _, err := dec.Token(); err != nil { // consume opening '['
		return msgs
	}
	for dec.More() {
		var m core.AgentMessage
		if err := dec.Decode(&m); err != nil {
			break
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func (s *Store) AppendMessage(ctx context.Context, agentID string, msg core.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, err := s.journal(agentID)
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)
	return writeJSONAtomic(s.messagesPath(agentID), msgs)
}

func (s *Store) LoadMessages(ctx context.Context, agentID string, chatID *string) ([]core.AgentMessage, error) {
	s.mu.Lock()
	msgs, err := s.journal(agentID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if chatID == nil {
		return msgs, nil
	}
	out := make([]core.AgentMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.SameChat(chatID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) ReplaceMessages(ctx context.Context, agentID string, msgs []core.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.messagesPath(agentID), msgs)
}

func (s *Store) DeleteMessagesFromChat(ctx context.Context, agentID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, err := s.journal(agentID)
	if err != nil {
		return err
	}
	out := msgs[:0:0]
	for _, m := range msgs {
		if !(m.ChatID != nil && *m.ChatID == chatID) {
			out = append(out, m)
		}
	}
	return writeJSONAtomic(s.messagesPath(agentID), out)
}

func (s *Store) Close() error { return nil }

func trimJSON(name string) string {
	return name[:len(name)-len(".json")]
}
