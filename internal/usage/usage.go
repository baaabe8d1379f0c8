// Package usage provides persistent token accounting for completion
// calls. Records are append-only and indexed by user and conversation
// for aggregation queries.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record represents one completion call's token usage.
type Record struct {
	ID             string
	Timestamp      time.Time
	UserID         string
	ConversationID int64
	Model          string
	Phase          string // "tools" or "narrate"
	InputTokens    int
	OutputTokens   int
}

// Summary holds aggregated token totals.
type Summary struct {
	TotalRecords      int   `json:"total_records"`
	TotalInputTokens  int64 `json:"total_input_tokens"`
	TotalOutputTokens int64 `json:"total_output_tokens"`
}

// Store is an append-only token usage ledger sharing the main SQLite
// handle. A nil *Store is valid: Record becomes a no-op, so callers
// never need to guard the optional ledger.
type Store struct {
	db *sql.DB
}

// New creates a usage store on an already-open database. The schema is
// created on first use.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id              TEXT PRIMARY KEY,
		timestamp       TEXT NOT NULL,
		user_id         TEXT NOT NULL,
		conversation_id INTEGER NOT NULL,
		model           TEXT NOT NULL,
		phase           TEXT NOT NULL,
		input_tokens    INTEGER NOT NULL,
		output_tokens   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_usage_conversation ON usage_records(conversation_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists a usage record. If rec.ID is empty, a UUID is
// generated. Nil-safe.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if s == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records
			(id, timestamp, user_id, conversation_id, model, phase, input_tokens, output_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.UserID,
		rec.ConversationID,
		rec.Model,
		rec.Phase,
		rec.InputTokens,
		rec.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// UserSummary returns aggregated totals for one user's records.
func (s *Store) UserSummary(userID string) (*Summary, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		 FROM usage_records
		 WHERE user_id = ?`,
		userID,
	)

	var sum Summary
	if err := row.Scan(&sum.TotalRecords, &sum.TotalInputTokens, &sum.TotalOutputTokens); err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return &sum, nil
}

// UserSummaryByModel returns per-model aggregated totals for one user.
func (s *Store) UserSummaryByModel(userID string) (map[string]*Summary, error) {
	rows, err := s.db.Query(
		`SELECT model, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		 FROM usage_records
		 WHERE user_id = ?
		 GROUP BY model
		 ORDER BY SUM(input_tokens) + SUM(output_tokens) DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage by model: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var model string
		var sum Summary
		if err := rows.Scan(&model, &sum.TotalRecords, &sum.TotalInputTokens, &sum.TotalOutputTokens); err != nil {
			return nil, fmt.Errorf("scan usage by model: %w", err)
		}
		result[model] = &sum
	}
	return result, rows.Err()
}
