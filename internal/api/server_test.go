package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rubii22/chatbot-for-todoapp/internal/agent"
	"github.com/rubii22/chatbot-for-todoapp/internal/auth"
	"github.com/rubii22/chatbot-for-todoapp/internal/llm"
	"github.com/rubii22/chatbot-for-todoapp/internal/store"
	"github.com/rubii22/chatbot-for-todoapp/internal/tools"
	"github.com/rubii22/chatbot-for-todoapp/internal/usage"
)

type testEnv struct {
	server *httptest.Server
	store  *store.Store
	client *llm.ScriptedClient
	auth   *auth.Authenticator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.Default()
	st, err := store.Open(":memory:", logger)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	client := llm.NewScriptedClient()
	registry := tools.NewRegistry(st, logger)
	ag := agent.New(st, client, registry, "test-model", logger)

	ledger, err := usage.New(st.DB())
	if err != nil {
		t.Fatalf("usage.New() error = %v", err)
	}
	ag.SetUsage(ledger)

	authn, err := auth.New("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("auth.New() error = %v", err)
	}

	srv := NewServer("127.0.0.1", 0, ag, st, registry, authn, logger)
	srv.SetUsage(ledger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, client: client, auth: authn}
}

// do performs a JSON request, optionally authenticated, and decodes the
// response body into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp
}

// signup registers a user and returns their token.
func (e *testEnv) signup(t *testing.T, email string) string {
	t.Helper()

	var body struct {
		Token string `json:"token"`
	}
	resp := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    email,
		"password": "hunter22pass",
		"name":     "Test User",
	}, &body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup: status = %d", resp.StatusCode)
	}
	if body.Token == "" {
		t.Fatal("signup: empty token")
	}
	return body.Token
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	env.signup(t, "alice@example.com")

	// Duplicate email conflicts.
	resp := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22pass",
		"name":     "Clone",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate signup: status = %d, want 409", resp.StatusCode)
	}

	var login struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22pass",
	}, &login)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status = %d", resp.StatusCode)
	}
	if login.Token == "" || login.User.Email != "alice@example.com" {
		t.Errorf("login body = %+v", login)
	}

	// Wrong password and unknown email read identically.
	for _, creds := range []map[string]string{
		{"email": "alice@example.com", "password": "wrong-password"},
		{"email": "nobody@example.com", "password": "hunter22pass"},
	} {
		var errBody struct {
			Detail string `json:"detail"`
		}
		resp = env.do(t, http.MethodPost, "/api/auth/login", "", creds, &errBody)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("login %v: status = %d, want 401", creds["email"], resp.StatusCode)
		}
		if errBody.Detail != "invalid email or password" {
			t.Errorf("login %v: detail = %q", creds["email"], errBody.Detail)
		}
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "password": "hunter22pass", "name": "x"}},
		{"short password", map[string]string{"email": "a@example.com", "password": "short", "name": "x"}},
		{"missing name", map[string]string{"email": "a@example.com", "password": "hunter22pass", "name": " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/auth/signup", "", tt.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct{ method, path string }{
		{http.MethodPost, "/api/chat"},
		{http.MethodGet, "/api/tasks"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodGet, "/api/conversations"},
	}
	for _, p := range paths {
		resp := env.do(t, p.method, p.path, "", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", p.method, p.path, resp.StatusCode)
		}
	}

	resp := env.do(t, http.MethodGet, "/api/tasks", "garbage-token", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", resp.StatusCode)
	}
}

func TestTaskCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "crud@example.com")

	// Create.
	var created struct {
		TaskID int64  `json:"task_id"`
		Status string `json:"status"`
		Title  string `json:"title"`
	}
	resp := env.do(t, http.MethodPost, "/api/tasks", token, map[string]any{
		"title": "Buy milk",
	}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}
	if created.Status != "created" || created.Title != "Buy milk" {
		t.Errorf("create body = %+v", created)
	}

	// List.
	var list struct {
		Tasks []struct {
			ID     int64  `json:"id"`
			Title  string `json:"title"`
			Status string `json:"status"`
		} `json:"tasks"`
	}
	resp = env.do(t, http.MethodGet, "/api/tasks", token, nil, &list)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status = %d", resp.StatusCode)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].Title != "Buy milk" {
		t.Fatalf("list body = %+v", list)
	}
	id := list.Tasks[0].ID

	// Get.
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get: status = %d", resp.StatusCode)
	}

	// Update.
	resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id), token, map[string]any{
		"title": "Buy oat milk",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("update: status = %d", resp.StatusCode)
	}

	// Empty update is a client error with a typed code.
	var updateErr struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id), token, map[string]any{}, &updateErr)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty update: status = %d, want 400", resp.StatusCode)
	}
	if updateErr.Error.Code != "NO_UPDATE_PARAMS" {
		t.Errorf("empty update: code = %q", updateErr.Error.Code)
	}

	// Complete.
	var completed struct {
		Status string `json:"status"`
	}
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/complete", id), token, nil, &completed)
	if resp.StatusCode != http.StatusOK || completed.Status != "completed" {
		t.Errorf("complete: status = %d, body = %+v", resp.StatusCode, completed)
	}

	// Delete.
	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete: status = %d", resp.StatusCode)
	}

	// Gone now.
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), token, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", resp.StatusCode)
	}
	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), token, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete after delete: status = %d, want 404", resp.StatusCode)
	}
}

func TestTaskIsolationOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signup(t, "alice@example.com")
	bobToken := env.signup(t, "bob@example.com")

	var created struct {
		TaskID int64 `json:"task_id"`
	}
	resp := env.do(t, http.MethodPost, "/api/tasks", aliceToken, map[string]any{"title": "private"}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}

	// Bob cannot see, mutate, or delete Alice's task.
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.TaskID), bobToken, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-user get: status = %d, want 404", resp.StatusCode)
	}
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/complete", created.TaskID), bobToken, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-user complete: status = %d, want 404", resp.StatusCode)
	}

	var list struct {
		Tasks []any `json:"tasks"`
	}
	env.do(t, http.MethodGet, "/api/tasks", bobToken, nil, &list)
	if len(list.Tasks) != 0 {
		t.Errorf("bob sees %d of alice's tasks", len(list.Tasks))
	}
}

func TestChatEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "chat@example.com")

	env.client.EnqueueToolCalls(llm.ToolCall{
		ID: "call_1",
		Function: llm.FunctionCall{
			Name:      "add_task",
			Arguments: map[string]any{"title": "Call mom"},
		},
	})
	env.client.EnqueueText("Added \"Call mom\" to your list.")

	var turn struct {
		ConversationID int64  `json:"conversation_id"`
		Response       string `json:"response"`
		ToolCalls      []struct {
			Name string `json:"name"`
		} `json:"tool_calls"`
	}
	resp := env.do(t, http.MethodPost, "/api/chat", token, map[string]any{
		"message": "remind me to call mom",
	}, &turn)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: status = %d", resp.StatusCode)
	}
	if turn.ConversationID == 0 || !strings.Contains(turn.Response, "Call mom") {
		t.Errorf("turn = %+v", turn)
	}
	if len(turn.ToolCalls) != 1 || turn.ToolCalls[0].Name != "add_task" {
		t.Errorf("tool calls = %+v", turn.ToolCalls)
	}

	// History is visible afterwards.
	var history struct {
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", turn.ConversationID), token, nil, &history)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("messages: status = %d", resp.StatusCode)
	}
	if len(history.Messages) != 2 {
		t.Errorf("got %d messages, want 2", len(history.Messages))
	}
}

func TestChatValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "chat@example.com")

	resp := env.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "   "}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank message: status = %d, want 400", resp.StatusCode)
	}

	// Unknown conversation and someone else's conversation both 404.
	missing := int64(999)
	var errBody struct {
		Detail string `json:"detail"`
	}
	resp = env.do(t, http.MethodPost, "/api/chat", token, map[string]any{
		"message":         "hi",
		"conversation_id": missing,
	}, &errBody)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing conversation: status = %d, want 404", resp.StatusCode)
	}
	if errBody.Detail != "conversation not found or does not belong to user" {
		t.Errorf("detail = %q", errBody.Detail)
	}

	otherToken := env.signup(t, "other@example.com")
	env.client.EnqueueText("hello")
	var turn struct {
		ConversationID int64 `json:"conversation_id"`
	}
	env.do(t, http.MethodPost, "/api/chat", otherToken, map[string]any{"message": "hi"}, &turn)

	resp = env.do(t, http.MethodPost, "/api/chat", token, map[string]any{
		"message":         "hi",
		"conversation_id": turn.ConversationID,
	}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign conversation: status = %d, want 404", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", turn.ConversationID), token, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign messages: status = %d, want 404", resp.StatusCode)
	}
}

func TestUsageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "usage@example.com")

	env.client.Enqueue(&llm.ChatResponse{
		Model:        "test/model",
		Message:      llm.Message{Role: "assistant", Content: "hello"},
		FinishReason: "stop",
		InputTokens:  120,
		OutputTokens: 8,
	})
	resp := env.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "hi"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: status = %d", resp.StatusCode)
	}

	var body struct {
		Total struct {
			TotalRecords      int   `json:"total_records"`
			TotalInputTokens  int64 `json:"total_input_tokens"`
			TotalOutputTokens int64 `json:"total_output_tokens"`
		} `json:"total"`
		ByModel map[string]struct {
			TotalRecords int `json:"total_records"`
		} `json:"by_model"`
	}
	resp = env.do(t, http.MethodGet, "/api/usage", token, nil, &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("usage: status = %d", resp.StatusCode)
	}
	if body.Total.TotalRecords != 1 || body.Total.TotalInputTokens != 120 || body.Total.TotalOutputTokens != 8 {
		t.Errorf("total = %+v", body.Total)
	}
	if body.ByModel["test/model"].TotalRecords != 1 {
		t.Errorf("by_model = %+v", body.ByModel)
	}

	// Another user's ledger is empty.
	otherToken := env.signup(t, "other@example.com")
	resp = env.do(t, http.MethodGet, "/api/usage", otherToken, nil, &body)
	if resp.StatusCode != http.StatusOK || body.Total.TotalRecords != 0 {
		t.Errorf("other user's usage: status = %d, total = %+v", resp.StatusCode, body.Total)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	var body struct {
		Status string `json:"status"`
	}
	resp := env.do(t, http.MethodGet, "/healthz", "", nil, &body)
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		t.Errorf("healthz: status = %d, body = %+v", resp.StatusCode, body)
	}
}
