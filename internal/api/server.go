// Package api implements the HTTP layer: the chat endpoint, direct task
// CRUD, and account signup/login. Handlers are a thin mapping onto the
// agent, registry, and store — no business logic lives here.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rubii22/chatbot-for-todoapp/internal/agent"
	"github.com/rubii22/chatbot-for-todoapp/internal/auth"
	"github.com/rubii22/chatbot-for-todoapp/internal/buildinfo"
	"github.com/rubii22/chatbot-for-todoapp/internal/store"
	"github.com/rubii22/chatbot-for-todoapp/internal/tools"
	"github.com/rubii22/chatbot-for-todoapp/internal/usage"
)

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	agent    *agent.Agent
	store    *store.Store
	registry *tools.Registry
	auth     *auth.Authenticator
	usage    *usage.Store
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates an API server.
func NewServer(address string, port int, ag *agent.Agent, st *store.Store, registry *tools.Registry, authn *auth.Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		port:     port,
		agent:    ag,
		store:    st,
		registry: registry,
		auth:     authn,
		logger:   logger.With("component", "api"),
	}
}

// SetUsage attaches the token usage ledger backing GET /api/usage.
func (s *Server) SetUsage(u *usage.Store) {
	s.usage = u
}

// Handler builds the route table. Exposed separately from Start so tests
// can drive the full stack through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.HandleFunc("POST /api/chat", s.requireAuth(s.handleChat))

	mux.HandleFunc("GET /api/tasks", s.requireAuth(s.handleListTasks))
	mux.HandleFunc("POST /api/tasks", s.requireAuth(s.handleCreateTask))
	mux.HandleFunc("GET /api/tasks/{id}", s.requireAuth(s.handleGetTask))
	mux.HandleFunc("PUT /api/tasks/{id}", s.requireAuth(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.requireAuth(s.handleDeleteTask))
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.requireAuth(s.handleCompleteTask))

	mux.HandleFunc("GET /api/conversations", s.requireAuth(s.handleListConversations))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.requireAuth(s.handleListMessages))

	mux.HandleFunc("GET /api/usage", s.requireAuth(s.handleUsage))

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return mux
}

// Start begins serving HTTP requests and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.address, s.port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // completions can be slow
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// handleHealth reports store stats and build info.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"store":  s.store.Stats(),
		"build":  buildinfo.Info(),
	})
}

// handleUsage reports the authenticated user's token accounting totals.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"total":    usage.Summary{},
			"by_model": map[string]*usage.Summary{},
		})
		return
	}

	total, err := s.usage.UserSummary(userID(r))
	if err != nil {
		s.logger.Error("usage summary failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	byModel, err := s.usage.UserSummaryByModel(userID(r))
	if err != nil {
		s.logger.Error("usage summary failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"total":    total,
		"by_model": byModel,
	})
}

// contextKey keeps request-context values package-private.
type contextKey string

const userIDKey contextKey = "user_id"

// requireAuth extracts and verifies the bearer token, placing the user ID
// in the request context. Missing or invalid tokens get a 401.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "authorization header missing or invalid")
			return
		}

		userID, err := s.auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.logger.Debug("token rejected", "error", err)
			s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// userID returns the authenticated user for the request. Only valid behind
// requireAuth.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// writeJSON encodes v as JSON to w. Encoding errors typically mean the
// client disconnected mid-response, which is not actionable.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

// writeError sends a JSON error body with the given status.
func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

// writeToolError maps a tool error code to an HTTP status. Not-found codes
// become 404, infrastructure failures 500, everything else is a client
// error.
func (s *Server) writeToolError(w http.ResponseWriter, te *tools.ToolError) {
	status := http.StatusBadRequest
	switch te.Code {
	case tools.CodeTaskNotFound:
		status = http.StatusNotFound
	case tools.CodeStoreError:
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, map[string]any{"error": te})
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
