package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/rubii22/chatbot-for-todoapp/internal/store"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is returned by both signup and login.
type authResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

// handleSignup registers a new account and issues a token.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		s.writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hash failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := s.store.CreateUser(req.Email, hash, req.Name)
	if errors.Is(err, store.ErrEmailTaken) {
		s.writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		s.logger.Error("user create failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := s.auth.IssueToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("user registered", "user", user.ID)
	s.writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// handleLogin verifies credentials and issues a token. Unknown email and
// wrong password are deliberately the same response.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(req.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		s.writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		s.logger.Error("user lookup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !s.auth.CheckPassword(user.PasswordHash, req.Password) {
		s.writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.auth.IssueToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
