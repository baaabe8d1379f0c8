// Package store provides SQLite persistence for users, conversations,
// messages, and tasks.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors for distinguishable not-found conditions. Conversation
// resolution failures must map to a 404-equivalent at the HTTP boundary,
// separate from generic internal failures.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("email already registered")
)

// Message roles. Only user and assistant turns are persisted; system and
// tool entries exist solely in the in-flight transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Task statuses. The only defined transition is pending → completed.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// timeLayout is the canonical on-disk timestamp format.
const timeLayout = time.RFC3339Nano

// User is an account identity. Owned by the auth subsystem.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation groups an ordered message log under one owning user.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn entry in a conversation. Never mutated or deleted.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Task is a per-user todo item. Isolation is enforced at query time: every
// read, update, or delete filters by (user_id, id) together.
type Task struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a store backed by the SQLite database at path, running
// migrations on first use. Use ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection avoids table-lock races between the pool's
	// connections; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name          TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			role            TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			content         TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at, id);

		CREATE TABLE IF NOT EXISTS tasks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT,
			status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, status);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for sibling stores that share the
// same database file (the usage ledger). The caller must not close it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Stats returns row counts for health reporting.
func (s *Store) Stats() map[string]any {
	var users, convs, msgs, tasks int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&convs)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&msgs)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&tasks)

	return map[string]any{
		"users":         users,
		"conversations": convs,
		"messages":      msgs,
		"tasks":         tasks,
		"storage":       "sqlite",
	}
}

// now returns the current UTC time truncated to the stored precision, so a
// value written and re-read compares equal.
func now() time.Time {
	t := time.Now().UTC()
	parsed, err := time.Parse(timeLayout, t.Format(timeLayout))
	if err != nil {
		return t
	}
	return parsed
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
