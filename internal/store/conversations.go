package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// CreateConversation starts a new conversation owned by userID.
func (s *Store) CreateConversation(userID string) (*Conversation, error) {
	ts := now()
	res, err := s.db.Exec(`
		INSERT INTO conversations (user_id, created_at, updated_at)
		VALUES (?, ?, ?)
	`, userID, formatTime(ts), formatTime(ts))
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("conversation id: %w", err)
	}

	return &Conversation{
		ID:        id,
		UserID:    userID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

// GetConversation retrieves a conversation by ID. Returns
// ErrConversationNotFound when absent. Ownership verification is the
// caller's responsibility.
func (s *Store) GetConversation(id int64) (*Conversation, error) {
	var conv Conversation
	var createdAt, updatedAt string

	err := s.db.QueryRow(`
		SELECT id, user_id, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.ID, &conv.UserID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)
	return &conv, nil
}

// ListMessages returns every message in the conversation in creation order.
// The id tiebreaker keeps insertion order for rows sharing a timestamp
// (the user/assistant pair written within one turn).
func (s *Store) ListMessages(conversationID int64) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendMessage adds a message to the conversation and bumps the
// conversation's updated_at, in one transaction.
func (s *Store) AppendMessage(conversationID int64, role, content string) (*Message, error) {
	ts := now()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT INTO messages (conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, role, content, formatTime(ts))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, formatTime(ts), conversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      ts,
	}, nil
}

// ListConversations returns the user's conversations, most recent first.
func (s *Store) ListConversations(userID string) ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
