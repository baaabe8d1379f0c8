package llm

import "context"

// Client is the interface that all completion providers must implement.
// Implementations must preserve transcript ordering exactly as given and
// never interpret tool results — re-submission with results appended is
// the caller's responsibility.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// tools may be nil to offer no tools; toolChoice is ToolChoiceAuto
	// or ToolChoiceNone.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, toolChoice string) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
