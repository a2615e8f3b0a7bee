// Package sqlstore persists worlds, chats and agent messages via
// database/sql, parametrized over any of the three drivers the
// runtime links: mattn/go-sqlite3, lib/pq, or go-sql-driver/mysql.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kadirpekel/worldcore/core"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db     *sql.DB
	driver string
}

// Open opens driver (one of "sqlite3", "postgres", "mysql") at dsn and
// ensures the schema exists.
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, core.StorageError(err, "opening %s database", driver)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS worlds (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			turn_limit INTEGER,
			current_chat_id TEXT,
			chat_llm_provider TEXT,
			chat_llm_model TEXT,
			main_agent TEXT,
			mcp_config TEXT,
			variables_raw TEXT,
			created_at TIMESTAMP,
			last_updated TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			name TEXT,
			type TEXT,
			provider TEXT,
			model TEXT,
			system_prompt TEXT,
			temperature REAL,
			max_tokens INTEGER,
			auto_reply INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			name TEXT,
			description TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			message_count INTEGER,
			summary TEXT,
			tags TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS agent_messages (
			message_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			chat_id TEXT,
			role TEXT,
			content TEXT,
			sender TEXT,
			tool_call_id TEXT,
			tool_calls TEXT,
			created_at TIMESTAMP,
			seq INTEGER
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return core.StorageError(err, "migrating schema")
		}
	}
	return nil
}

func (s *Store) SaveWorld(ctx context.Context, w *core.World) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO worlds (id, name, description, turn_limit, current_chat_id, chat_llm_provider,
			chat_llm_model, main_agent, mcp_config, variables_raw, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name=excluded.name, description=excluded.description,
			turn_limit=excluded.turn_limit, current_chat_id=excluded.current_chat_id,
			chat_llm_provider=excluded.chat_llm_provider, chat_llm_model=excluded.chat_llm_model,
			main_agent=excluded.main_agent, mcp_config=excluded.mcp_config,
			variables_raw=excluded.variables_raw, last_updated=excluded.last_updated`,
		w.ID, w.Name, w.Description, w.TurnLimit, w.CurrentChatID, w.ChatLLMProvider,
		w.ChatLLMModel, w.MainAgent, w.MCPConfig, w.VariablesRaw, w.CreatedAt, w.LastUpdated)
	if err != nil {
		return core.StorageError(err, "saving world %s", w.ID)
	}
	return nil
}

func (s *Store) LoadWorld(ctx context.Context, id string) (*core.World, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, turn_limit, current_chat_id,
		chat_llm_provider, chat_llm_model, main_agent, mcp_config, variables_raw, created_at, last_updated
		FROM worlds WHERE id = ?`, id)

	w := core.NewWorld(id, "")
	var desc, provider, model, mainAgent, mcp, vars sql.NullString
	var currentChat sql.NullString
	if err := row.Scan(&w.ID, &w.Name, &desc, &w.TurnLimit, &currentChat, &provider, &model,
		&mainAgent, &mcp, &vars, &w.CreatedAt, &w.LastUpdated); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFoundf("world %q not found", id)
		}
		return nil, core.StorageError(err, "loading world %s", id)
	}
	w.Description = desc.String
	w.ChatLLMProvider = provider.String
	w.ChatLLMModel = model.String
	w.MainAgent = mainAgent.String
	w.MCPConfig = mcp.String
	w.VariablesRaw = vars.String
	if currentChat.Valid {
		v := currentChat.String
		w.CurrentChatID = &v
	}

	agents, err := s.loadAgents(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		w.AddAgent(a)
	}
	return w, nil
}

func (s *Store) loadAgents(ctx context.Context, worldID string) ([]*core.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type, provider, model, system_prompt,
		temperature, max_tokens, auto_reply FROM agents WHERE world_id = ?`, worldID)
	if err != nil {
		return nil, core.StorageError(err, "loading agents for world %s", worldID)
	}
	defer rows.Close()

	var out []*core.Agent
	for rows.Next() {
		a := &core.Agent{}
		var autoReply int
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Provider, &a.Model, &a.SystemPrompt,
			&a.Temperature, &a.MaxTokens, &autoReply); err != nil {
			return nil, core.StorageError(err, "scanning agent row")
		}
		a.AutoReply = autoReply != 0
		msgs, err := s.LoadMessages(ctx, a.ID, nil)
		if err != nil {
			return nil, err
		}
		a.SetMemory(msgs)
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) DeleteWorld(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_messages WHERE agent_id IN (SELECT id FROM agents WHERE world_id = ?)`, id); err != nil {
		return core.StorageError(err, "cascading delete of messages for world %s", id)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE world_id = ?`, id); err != nil {
		return core.StorageError(err, "cascading delete of agents for world %s", id)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE world_id = ?`, id); err != nil {
		return core.StorageError(err, "cascading delete of chats for world %s", id)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM worlds WHERE id = ?`, id); err != nil {
		return core.StorageError(err, "deleting world %s", id)
	}
	return nil
}

func (s *Store) ListWorlds(ctx context.Context) ([]*core.World, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM worlds`)
	if err != nil {
		return nil, core.StorageError(err, "listing worlds")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.StorageError(err, "scanning world id")
		}
		ids = append(ids, id)
	}
	out := make([]*core.World, 0, len(ids))
	for _, id := range ids {
		w, err := s.LoadWorld(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) SaveAgent(ctx context.Context, worldID string, a *core.Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, world_id, name, type, provider, model, system_prompt, temperature, max_tokens, auto_reply)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name=excluded.name, type=excluded.type, provider=excluded.provider,
			model=excluded.model, system_prompt=excluded.system_prompt, temperature=excluded.temperature,
			max_tokens=excluded.max_tokens, auto_reply=excluded.auto_reply`,
		a.ID, worldID, a.Name, a.Type, a.Provider, a.Model, a.SystemPrompt, a.Temperature, a.MaxTokens, boolToInt(a.AutoReply))
	if err != nil {
		return core.StorageError(err, "saving agent %s", a.ID)
	}
	return nil
}

func (s *Store) DeleteAgent(ctx context.Context, worldID, agentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_messages WHERE agent_id = ?`, agentID); err != nil {
		return core.StorageError(err, "deleting messages for agent %s", agentID)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ? AND world_id = ?`, agentID, worldID); err != nil {
		return core.StorageError(err, "deleting agent %s", agentID)
	}
	return nil
}

func (s *Store) SaveChat(ctx context.Context, c *core.Chat) error {
	tags, _ := json.Marshal(c.Tags)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, world_id, name, description, created_at, updated_at, message_count, summary, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name=excluded.name, description=excluded.description,
			updated_at=excluded.updated_at, message_count=excluded.message_count, summary=excluded.summary,
			tags=excluded.tags`,
		c.ID, c.WorldID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt, c.MessageCount, c.Summary, string(tags))
	if err != nil {
		return core.StorageError(err, "saving chat %s", c.ID)
	}
	return nil
}

func (s *Store) LoadChat(ctx context.Context, id string) (*core.Chat, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, world_id, name, description, created_at, updated_at,
		message_count, summary, tags FROM chats WHERE id = ?`, id)
	c := &core.Chat{}
	var tags sql.NullString
	if err := row.Scan(&c.ID, &c.WorldID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt,
		&c.MessageCount, &c.Summary, &tags); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFoundf("chat %q not found", id)
		}
		return nil, core.StorageError(err, "loading chat %s", id)
	}
	if tags.Valid {
		_ = json.Unmarshal([]byte(tags.String), &c.Tags)
	}
	return c, nil
}

func (s *Store) DeleteChat(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_messages WHERE chat_id = ?`, id); err != nil {
		return core.StorageError(err, "cascading delete of messages for chat %s", id)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id); err != nil {
		return core.StorageError(err, "deleting chat %s", id)
	}
	return nil
}

func (s *Store) ListChats(ctx context.Context, worldID string) ([]*core.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chats WHERE world_id = ?`, worldID)
	if err != nil {
		return nil, core.StorageError(err, "listing chats for world %s", worldID)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.StorageError(err, "scanning chat id")
		}
		ids = append(ids, id)
	}
	out := make([]*core.Chat, 0, len(ids))
	for _, id := range ids {
		c, err := s.LoadChat(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) AppendMessage(ctx context.Context, agentID string, msg core.AgentMessage) error {
	toolCalls, _ := json.Marshal(msg.ToolCalls)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_messages (message_id, agent_id, chat_id, role, content, sender, tool_call_id, tool_calls, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM agent_messages WHERE agent_id = ?))`,
		msg.MessageID, agentID, msg.ChatID, string(msg.Role), msg.Content, msg.Sender, msg.ToolCallID,
		string(toolCalls), msg.CreatedAt, agentID)
	if err != nil {
		return core.StorageError(err, "appending message for agent %s", agentID)
	}
	return nil
}

func (s *Store) LoadMessages(ctx context.Context, agentID string, chatID *string) ([]core.AgentMessage, error) {
	query := `SELECT message_id, chat_id, role, content, sender, tool_call_id, tool_calls, created_at
		FROM agent_messages WHERE agent_id = ?`
	args := []any{agentID}
	if chatID != nil {
		query += ` AND chat_id = ?`
		args = append(args, *chatID)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.StorageError(err, "loading messages for agent %s", agentID)
	}
	defer rows.Close()

	var out []core.AgentMessage
	for rows.Next() {
		var m core.AgentMessage
		var chat sql.NullString
		var toolCalls sql.NullString
		m.AgentID = agentID
		if err := rows.Scan(&m.MessageID, &chat, &m.Role, &m.Content, &m.Sender, &m.ToolCallID, &toolCalls, &m.CreatedAt); err != nil {
			return nil, core.StorageError(err, "scanning message row")
		}
		if chat.Valid {
			v := chat.String
			m.ChatID = &v
		}
		if toolCalls.Valid && toolCalls.String != "" {
			_ = json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) ReplaceMessages(ctx context.Context, agentID string, msgs []core.AgentMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StorageError(err, "beginning transaction")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_messages WHERE agent_id = ?`, agentID); err != nil {
		tx.Rollback()
		return core.StorageError(err, "clearing messages for agent %s", agentID)
	}
	for i, m := range msgs {
		toolCalls, _ := json.Marshal(m.ToolCalls)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agent_messages (message_id, agent_id, chat_id, role, content, sender, tool_call_id, tool_calls, created_at, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.MessageID, agentID, m.ChatID, string(m.Role), m.Content, m.Sender, m.ToolCallID, string(toolCalls), m.CreatedAt, i+1); err != nil {
			tx.Rollback()
			return core.StorageError(err, "replacing messages for agent %s", agentID)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.StorageError(err, "committing replace for agent %s", agentID)
	}
	return nil
}

func (s *Store) DeleteMessagesFromChat(ctx context.Context, agentID, chatID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_messages WHERE agent_id = ? AND chat_id = ?`, agentID, chatID); err != nil {
		return core.StorageError(err, "deleting messages for agent %s in chat %s", agentID, chatID)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return core.StorageError(err, "closing database")
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
