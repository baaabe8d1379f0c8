// Package tools defines the task operations the agent's model may request.
package tools

import (
	"encoding/json"
	"fmt"
)

// ErrorCode identifies a tool failure category. Codes are part of the tool
// contract: they travel back to the model as data, and the model is expected
// to explain them to the user conversationally.
type ErrorCode string

const (
	CodeInvalidUserID  ErrorCode = "INVALID_USER_ID"
	CodeMissingTitle   ErrorCode = "MISSING_TITLE"
	CodeInvalidTaskID  ErrorCode = "INVALID_TASK_ID"
	CodeTaskNotFound   ErrorCode = "TASK_NOT_FOUND"
	CodeNoUpdateParams ErrorCode = "NO_UPDATE_PARAMS"

	// Dispatch-level failures. The model can recover by correcting the
	// call; they are never raised as Go errors.
	CodeUnknownTool   ErrorCode = "UNKNOWN_TOOL"
	CodeBadArguments  ErrorCode = "BAD_ARGUMENTS"
	CodeStoreError    ErrorCode = "STORE_ERROR"
)

// ToolError is a structured, user-facing-safe tool failure.
type ToolError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Result is the outcome of one tool execution: either a success payload or
// a typed error, never both. Check Err at every call site.
type Result struct {
	Payload any
	Err     *ToolError
}

// Success wraps a payload in a successful Result.
func Success(payload any) Result {
	return Result{Payload: payload}
}

// Failure builds an error Result with a formatted message.
func Failure(code ErrorCode, format string, args ...any) Result {
	return Result{Err: &ToolError{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// OK reports whether the tool call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// JSON renders the result for the tool-role transcript entry: the payload
// directly on success, or {"error":{"code","message"}} on failure.
func (r Result) JSON() string {
	var v any
	if r.Err != nil {
		v = map[string]any{"error": r.Err}
	} else {
		v = r.Payload
	}

	data, err := json.Marshal(v)
	if err != nil {
		return `{"error":{"code":"STORE_ERROR","message":"unencodable tool result"}}`
	}
	return string(data)
}

// mutationPayload is the success shape shared by add, complete, delete, and
// update: the affected task id, an operation status word, and the title.
type mutationPayload struct {
	TaskID int64  `json:"task_id"`
	Status string `json:"status"`
	Title  string `json:"title"`
}

// taskRecord is one row in a list_tasks result.
type taskRecord struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}
