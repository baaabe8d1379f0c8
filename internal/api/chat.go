package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rubii22/chatbot-for-todoapp/internal/store"
)

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id"`
}

// handleChat runs one agent turn for the authenticated user.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := s.agent.ProcessMessage(r.Context(), userID(r), req.Message, req.ConversationID)
	if errors.Is(err, store.ErrConversationNotFound) {
		// Ownership violations are indistinguishable from missing
		// conversations; both fail the turn before any persistence.
		s.writeError(w, http.StatusNotFound, "conversation not found or does not belong to user")
		return
	}
	if err != nil {
		s.logger.Error("chat turn failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleListConversations returns the user's conversations, newest first.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListConversations(userID(r))
	if err != nil {
		s.logger.Error("conversation list failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// handleListMessages returns a conversation's messages in creation order.
// Ownership is checked the same way the agent checks it.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := s.store.GetConversation(id)
	if errors.Is(err, store.ErrConversationNotFound) || (err == nil && conv.UserID != userID(r)) {
		s.writeError(w, http.StatusNotFound, "conversation not found or does not belong to user")
		return
	}
	if err != nil {
		s.logger.Error("conversation fetch failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	messages, err := s.store.ListMessages(id)
	if err != nil {
		s.logger.Error("message list failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
