package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient is a deterministic Client for tests. It returns canned
// responses in order and records every request it receives. Construct it
// wherever a real provider would be injected — selection happens at
// construction time, never by conditional import.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []*ChatResponse
	errs      []error
	calls     []ScriptedCall
	pingErr   error
}

// ScriptedCall records one Chat invocation.
type ScriptedCall struct {
	Model      string
	Messages   []Message
	Tools      []map[string]any
	ToolChoice string
}

// NewScriptedClient creates an empty scripted client. Queue responses with
// Enqueue or EnqueueError before use.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{}
}

// Enqueue adds a canned response to the reply queue.
func (s *ScriptedClient) Enqueue(resp *ChatResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	s.errs = append(s.errs, nil)
}

// EnqueueText adds a plain assistant text reply to the queue.
func (s *ScriptedClient) EnqueueText(content string) {
	s.Enqueue(&ChatResponse{
		Model:        "scripted",
		Message:      Message{Role: "assistant", Content: content},
		FinishReason: "stop",
	})
}

// EnqueueToolCalls adds an assistant turn that requests the given tool calls.
func (s *ScriptedClient) EnqueueToolCalls(calls ...ToolCall) {
	s.Enqueue(&ChatResponse{
		Model:        "scripted",
		Message:      Message{Role: "assistant", ToolCalls: calls},
		FinishReason: "tool_calls",
	})
}

// EnqueueError makes the next Chat call fail with err.
func (s *ScriptedClient) EnqueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, nil)
	s.errs = append(s.errs, err)
}

// Chat pops the next canned response and records the request.
func (s *ScriptedClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, toolChoice string) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, ScriptedCall{
		Model:      model,
		Messages:   append([]Message(nil), messages...),
		Tools:      tools,
		ToolChoice: toolChoice,
	})

	if len(s.responses) == 0 {
		return nil, fmt.Errorf("scripted client: no response queued for call %d", len(s.calls))
	}
	resp, err := s.responses[0], s.errs[0]
	s.responses = s.responses[1:]
	s.errs = s.errs[1:]
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Ping returns the configured ping error, nil by default.
func (s *ScriptedClient) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

// SetPingError makes Ping fail with err.
func (s *ScriptedClient) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// Calls returns a copy of all recorded Chat invocations.
func (s *ScriptedClient) Calls() []ScriptedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ScriptedCall(nil), s.calls...)
}
