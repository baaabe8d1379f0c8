// Package llm provides completion provider client implementations.
package llm

import (
	"log/slog"
	"time"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message represents a chat message for the completion provider.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
	Name       string     `json:"name,omitempty"`         // Tool name on tool responses
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"` // Provider-assigned ID for tool_result correlation
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its decoded arguments.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Tool choice values accepted by Client.Chat.
const (
	// ToolChoiceAuto lets the model decide whether to call tools.
	ToolChoiceAuto = "auto"

	// ToolChoiceNone forbids tool calls. Used for the second completion
	// pass, where the model narrates tool outcomes.
	ToolChoiceNone = "none"
)

// ChatResponse is the unified response from any completion provider.
// All fields use proper Go types — wire format conversion happens
// at provider boundaries (openrouter.go).
type ChatResponse struct {
	Model        string
	CreatedAt    time.Time
	Message      Message
	FinishReason string

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}
