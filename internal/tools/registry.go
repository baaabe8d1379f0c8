package tools

import (
	"context"
	"log/slog"

	"github.com/rubii22/chatbot-for-todoapp/internal/store"
)

// Tool is one callable operation in the registry.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, args map[string]any) Result
}

// Registry holds the fixed catalogue of task operations. It is constructed
// explicitly and injected into the agent — there is no process-wide
// registry.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	store  *store.Store
	logger *slog.Logger
}

// NewRegistry creates the task tool registry backed by st.
func NewRegistry(st *store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		store:  st,
		logger: logger.With("component", "tools"),
	}
	r.registerBuiltins()
	return r
}

// register adds a tool, preserving registration order for Schemas.
func (r *Registry) register(t *Tool) {
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Schemas returns the full tool catalogue in the function-calling format
// the completion provider expects, in stable registration order.
func (r *Registry) Schemas() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name. Failures of every kind — unknown tool, bad
// arguments, validation, not-found — come back as an error-shaped Result,
// never as a Go error: the model reacts to them as data.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	tool := r.tools[name]
	if tool == nil {
		r.logger.Warn("unknown tool requested", "tool", name)
		return Failure(CodeUnknownTool, "Unknown tool: %s", name)
	}

	result := tool.Handler(ctx, args)
	if result.OK() {
		r.logger.Debug("tool executed", "tool", name)
	} else {
		r.logger.Debug("tool failed", "tool", name, "code", result.Err.Code)
	}
	return result
}
