// Package agent implements the core conversational turn loop.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rubii22/chatbot-for-todoapp/internal/llm"
	"github.com/rubii22/chatbot-for-todoapp/internal/prompts"
	"github.com/rubii22/chatbot-for-todoapp/internal/store"
	"github.com/rubii22/chatbot-for-todoapp/internal/tools"
	"github.com/rubii22/chatbot-for-todoapp/internal/usage"
)

// Agent orchestrates one conversational turn: load history, call the
// completion provider, dispatch requested tools, call the provider again to
// narrate outcomes, persist the exchange. All collaborators are injected at
// construction — there is no shared global client or registry.
type Agent struct {
	store    *store.Store
	llm      llm.Client
	registry *tools.Registry
	logger   *slog.Logger
	model    string
	usage    *usage.Store
}

// New creates an agent.
func New(st *store.Store, client llm.Client, registry *tools.Registry, model string, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		store:    st,
		llm:      client,
		registry: registry,
		logger:   logger.With("component", "agent"),
		model:    model,
	}
}

// SetUsage attaches a token usage ledger. Optional; a nil ledger means
// token accounting is skipped.
func (a *Agent) SetUsage(u *usage.Store) {
	a.usage = u
}

// ToolCallRecord is one executed tool invocation, as reported to the caller.
type ToolCallRecord struct {
	Name      string          `json:"name"`
	Arguments map[string]any  `json:"arguments"`
	Result    json.RawMessage `json:"result"`
}

// TurnResult is the outcome of one processed message.
type TurnResult struct {
	ConversationID int64            `json:"conversation_id"`
	Response       string           `json:"response"`
	ToolCalls      []ToolCallRecord `json:"tool_calls"`
}

// ProcessMessage runs one full turn for userID. When conversationID is nil
// a new conversation is created; otherwise the existing conversation must
// belong to userID or the turn fails with store.ErrConversationNotFound
// before anything is persisted.
//
// Provider failures do not fail the turn: they degrade to an apologetic
// reply that is persisted like any other assistant message, so the
// conversation never silently drops a turn.
func (a *Agent) ProcessMessage(ctx context.Context, userID, content string, conversationID *int64) (*TurnResult, error) {
	conv, err := a.resolveConversation(userID, conversationID)
	if err != nil {
		return nil, err
	}

	transcript, err := a.buildTranscript(conv.ID, content)
	if err != nil {
		return nil, err
	}

	a.logger.Info("turn started",
		"user", userID,
		"conversation", conv.ID,
		"history", len(transcript)-2, // minus system prompt and new message
	)

	responseText, records := a.complete(ctx, userID, conv.ID, transcript)

	// Persist the turn exactly once, on every path: the user message first,
	// then the assistant reply. Explicit sequencing orders the pair, not
	// timestamp granularity.
	if _, err := a.store.AppendMessage(conv.ID, store.RoleUser, content); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	if _, err := a.store.AppendMessage(conv.ID, store.RoleAssistant, responseText); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	a.logger.Info("turn completed",
		"conversation", conv.ID,
		"tool_calls", len(records),
		"response_len", len(responseText),
	)

	return &TurnResult{
		ConversationID: conv.ID,
		Response:       responseText,
		ToolCalls:      records,
	}, nil
}

// resolveConversation fetches and ownership-checks an existing conversation,
// or lazily creates a new one. A conversation owned by another user is
// indistinguishable from a missing one.
func (a *Agent) resolveConversation(userID string, conversationID *int64) (*store.Conversation, error) {
	if conversationID == nil {
		conv, err := a.store.CreateConversation(userID)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		return conv, nil
	}

	conv, err := a.store.GetConversation(*conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, store.ErrConversationNotFound
	}
	return conv, nil
}

// buildTranscript assembles the provider transcript: system prompt, stored
// history in creation order, then the new user message. The transcript only
// ever grows by appending; nothing already sent is mutated.
func (a *Agent) buildTranscript(conversationID int64, content string) ([]llm.Message, error) {
	history, err := a.store.ListMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	transcript := make([]llm.Message, 0, len(history)+2)
	transcript = append(transcript, llm.Message{Role: "system", Content: prompts.System})
	for _, m := range history {
		transcript = append(transcript, llm.Message{Role: m.Role, Content: m.Content})
	}
	transcript = append(transcript, llm.Message{Role: "user", Content: content})
	return transcript, nil
}

// complete runs the one- or two-phase completion and returns the final
// reply text plus the executed tool calls. Provider errors from either
// phase degrade to an apology; they never propagate.
func (a *Agent) complete(ctx context.Context, userID string, conversationID int64, transcript []llm.Message) (string, []ToolCallRecord) {
	first, err := a.llm.Chat(ctx, a.model, transcript, a.registry.Schemas(), llm.ToolChoiceAuto)
	if err != nil {
		a.logger.Error("completion failed", "phase", "first", "error", err)
		return degradedReply(err), nil
	}
	a.recordUsage(ctx, userID, conversationID, "tools", first)

	if len(first.Message.ToolCalls) == 0 {
		return first.Message.Content, nil
	}

	transcript = append(transcript, first.Message)
	records := make([]ToolCallRecord, 0, len(first.Message.ToolCalls))

	// Dispatch strictly in the order the provider returned the calls. Tool
	// invocations may have ordering-sensitive side effects (add then
	// complete the same task), and the transcript must reflect real
	// execution order.
	for _, tc := range first.Message.ToolCalls {
		args := make(map[string]any, len(tc.Function.Arguments)+1)
		for k, v := range tc.Function.Arguments {
			args[k] = v
		}
		// The model never supplies or overrides the caller's identity.
		args["user_id"] = userID

		result := a.registry.Execute(ctx, tc.Function.Name, args)
		records = append(records, ToolCallRecord{
			Name:      tc.Function.Name,
			Arguments: args,
			Result:    json.RawMessage(result.JSON()),
		})

		callID := tc.ID
		if callID == "" {
			callID = "call_" + uuid.NewString()[:8]
		}

		// Tool errors travel back to the model as data, not as failures.
		transcript = append(transcript, llm.Message{
			Role:       "tool",
			ToolCallID: callID,
			Name:       tc.Function.Name,
			Content:    result.JSON(),
		})
	}

	// Second pass: no tools offered. The model narrates what actually
	// happened, grounded in the real results — it cannot act again.
	second, err := a.llm.Chat(ctx, a.model, transcript, nil, llm.ToolChoiceNone)
	if err != nil {
		a.logger.Error("completion failed", "phase", "second", "error", err)
		return degradedReply(err), nil
	}
	a.recordUsage(ctx, userID, conversationID, "narrate", second)

	return second.Message.Content, records
}

// recordUsage appends one completion call to the token ledger. Ledger
// failures are logged and swallowed; accounting must never fail a turn.
func (a *Agent) recordUsage(ctx context.Context, userID string, conversationID int64, phase string, resp *llm.ChatResponse) {
	err := a.usage.Record(ctx, usage.Record{
		UserID:         userID,
		ConversationID: conversationID,
		Model:          resp.Model,
		Phase:          phase,
		InputTokens:    resp.InputTokens,
		OutputTokens:   resp.OutputTokens,
	})
	if err != nil {
		a.logger.Warn("usage record failed", "error", err)
	}
}

// degradedReply is the assistant text persisted when the completion
// provider is unreachable. The error is embedded so failures stay visible
// in conversation history.
func degradedReply(err error) string {
	return fmt.Sprintf("I encountered an issue processing your request: %v", err)
}
