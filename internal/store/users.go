package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateUser registers a new user. Email matching is case-insensitive;
// returns ErrEmailTaken when the address is already registered.
func (s *Store) CreateUser(email, passwordHash, name string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ts := now()

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		CreatedAt:    ts,
	}

	_, err := s.db.Exec(`
		INSERT INTO users (id, email, password_hash, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, u.Name, formatTime(ts))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

// GetUserByEmail looks up a user for login. Returns ErrUserNotFound when
// the email is unknown.
func (s *Store) GetUserByEmail(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var u User
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, email, password_hash, name, created_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// GetUser looks up a user by ID. Returns ErrUserNotFound when absent.
func (s *Store) GetUser(id string) (*User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, email, password_hash, name, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}
