package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const taskColumns = "id, user_id, title, description, status, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var t Task
	var desc sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.UserID, &t.Title, &desc, &t.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// CreateTask inserts a new pending task for the user.
func (s *Store) CreateTask(userID, title string, description *string) (*Task, error) {
	ts := now()
	res, err := s.db.Exec(`
		INSERT INTO tasks (user_id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, title, description, StatusPending, formatTime(ts), formatTime(ts))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}

	return &Task{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// GetTask fetches a task by (userID, taskID). Returns ErrTaskNotFound when
// no task with that ID exists for that user — a task ID alone never
// resolves across users.
func (s *Store) GetTask(userID string, taskID int64) (*Task, error) {
	row := s.db.QueryRow(`
		SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND id = ?
	`, userID, taskID)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns the user's tasks in creation order. status filters to
// "pending" or "completed"; any other value (including "all" and "") returns
// everything.
func (s *Store) ListTasks(userID, status string) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}

	if status == StatusPending || status == StatusCompleted {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CompleteTask transitions the task to completed and returns the updated
// row. The transition is one-directional; completing an already completed
// task still reports completed. Returns ErrTaskNotFound when the (userID,
// taskID) pair matches nothing.
func (s *Store) CompleteTask(userID string, taskID int64) (*Task, error) {
	ts := now()
	res, err := s.db.Exec(`
		UPDATE tasks SET status = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, StatusCompleted, formatTime(ts), userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if affected == 0 {
		return nil, ErrTaskNotFound
	}

	return s.GetTask(userID, taskID)
}

// UpdateTask applies a partial update: nil fields are left unchanged. At
// least one of title or description must be non-nil; validating that is the
// caller's job. The update is a single statement, so concurrent readers
// never observe a half-applied change.
func (s *Store) UpdateTask(userID string, taskID int64, title, description *string) (*Task, error) {
	ts := now()
	res, err := s.db.Exec(`
		UPDATE tasks
		SET title       = COALESCE(?, title),
		    description = COALESCE(?, description),
		    updated_at  = ?
		WHERE user_id = ? AND id = ?
	`, title, description, formatTime(ts), userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		return nil, ErrTaskNotFound
	}

	return s.GetTask(userID, taskID)
}

// DeleteTask removes the task and returns the removed row, so callers can
// report the title after deletion. Returns ErrTaskNotFound when the
// (userID, taskID) pair matches nothing.
func (s *Store) DeleteTask(userID string, taskID int64) (*Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRow(`
		SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND id = ?
	`, userID, taskID)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, taskID); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}
