package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Typed argument records, one per tool. Model output is decoded into these
// with unknown fields rejected, rather than passed through as untyped maps.

type addTaskArgs struct {
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type listTasksArgs struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type taskRefArgs struct {
	UserID string `json:"user_id"`
	TaskID int64  `json:"task_id"`
}

type updateTaskArgs struct {
	UserID      string  `json:"user_id"`
	TaskID      int64   `json:"task_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// decodeArgs converts a raw argument map into a typed record. Unknown
// fields are an error: silently dropping model-supplied fields hides
// mistakes the model could otherwise correct. Fractional task_id values
// fail the int64 decode, which is what the contract requires.
func decodeArgs(raw map[string]any, dst any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// validUserID reports whether the user id is a non-empty string after
// trimming.
func validUserID(userID string) bool {
	return strings.TrimSpace(userID) != ""
}

// sanitize strips null bytes and surrounding whitespace from free-text
// input before storage.
func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// sanitizePtr sanitizes an optional field in place, preserving nil.
func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := sanitize(*s)
	return &clean
}
