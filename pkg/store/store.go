// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a conversation id has no row.
var ErrNotFound = errors.New("conversation not found")

// Conversation is one persisted chat thread.
type Conversation struct {
	ID        string
	Title     string
	Provider  string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one persisted transcript row. Assistant tool calls are
// flattened: each call becomes its own row with ToolName and
// ToolArguments set. Tool results carry Role "tool" plus ToolCallID;
// for those rows Content holds the short display copy and ToolResult
// the larger model-facing copy.
type Message struct {
	ID             int64
	ConversationID string
	Role           string
	Content        string
	ToolCallID     string
	ToolName       string
	ToolArguments  string
	ToolResult     string
	CreatedAt      time.Time
}

// Store persists conversations and messages in SQLite.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			provider   TEXT NOT NULL DEFAULT '',
			model      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL DEFAULT '',
			tool_call_id    TEXT NOT NULL DEFAULT '',
			tool_name       TEXT NOT NULL DEFAULT '',
			tool_arguments  TEXT NOT NULL DEFAULT '',
			tool_result     TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	// Databases created before the tool_result column existed. The error
	// is expected once the column is present.
	_, _ = s.db.Exec(`ALTER TABLE messages ADD COLUMN tool_result TEXT NOT NULL DEFAULT ''`)
	_, err = s.db.Exec(`PRAGMA foreign_keys = ON;`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a new thread and returns it with a fresh id.
func (s *Store) CreateConversation(ctx context.Context, title, provider, model string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Provider:  provider,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, title, provider, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		conv.ID, conv.Title, conv.Provider, conv.Model, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, provider, model, created_at, updated_at FROM conversations WHERE id = ?", id)
	var c Conversation
	err := row.Scan(&c.ID, &c.Title, &c.Provider, &c.Model, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns threads newest-activity first.
func (s *Store) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, provider, model, created_at, updated_at FROM conversations ORDER BY updated_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.Provider, &c.Model, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func (s *Store) UpdateTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?", title, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateProviderModel(ctx context.Context, id, provider, model string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET provider = ?, model = ?, updated_at = ? WHERE id = ?",
		provider, model, time.Now().UTC(), id)
	return err
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	// Explicit message delete in case the connection has foreign keys off.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage stores one row and bumps the conversation's activity time.
func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, tool_call_id, tool_name, tool_arguments, tool_result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.Role, msg.Content, msg.ToolCallID, msg.ToolName, msg.ToolArguments, msg.ToolResult, msg.CreatedAt)
	if err != nil {
		return err
	}
	msg.ID, _ = res.LastInsertId()

	_, err = s.db.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?", time.Now().UTC(), msg.ConversationID)
	return err
}

// Messages returns the full transcript in insertion order.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, tool_call_id, tool_name, tool_arguments, tool_result, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content,
			&m.ToolCallID, &m.ToolName, &m.ToolArguments, &m.ToolResult, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
