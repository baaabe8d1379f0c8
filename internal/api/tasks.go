package api

import (
	"net/http"
	"strconv"
)

// The task endpoints are direct CRUD for programmatic clients, bypassing
// the model. They dispatch through the same tool registry the agent uses,
// so validation, sanitization, and isolation behave identically on both
// paths.

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// taskID parses the {id} path segment. Zero means invalid.
func taskID(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// handleListTasks returns the user's tasks, optionally filtered by the
// status query parameter.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	result := s.registry.Execute(r.Context(), "list_tasks", map[string]any{
		"user_id": userID(r),
		"status":  r.URL.Query().Get("status"),
	})
	if !result.OK() {
		s.writeToolError(w, result.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": result.Payload})
}

// handleCreateTask adds a task and returns the full stored record.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	args := map[string]any{
		"user_id": userID(r),
		"title":   req.Title,
	}
	if req.Description != nil {
		args["description"] = *req.Description
	}

	result := s.registry.Execute(r.Context(), "add_task", args)
	if !result.OK() {
		s.writeToolError(w, result.Err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result.Payload)
}

// handleGetTask fetches one task owned by the user.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := taskID(r)
	if id == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := s.store.GetTask(userID(r), id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask applies a partial update to a task.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := taskID(r)
	if id == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var req updateTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	args := map[string]any{
		"user_id": userID(r),
		"task_id": id,
	}
	if req.Title != nil {
		args["title"] = *req.Title
	}
	if req.Description != nil {
		args["description"] = *req.Description
	}

	result := s.registry.Execute(r.Context(), "update_task", args)
	if !result.OK() {
		s.writeToolError(w, result.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Payload)
}

// handleCompleteTask marks a task completed.
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id := taskID(r)
	if id == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	result := s.registry.Execute(r.Context(), "complete_task", map[string]any{
		"user_id": userID(r),
		"task_id": id,
	})
	if !result.OK() {
		s.writeToolError(w, result.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Payload)
}

// handleDeleteTask removes a task.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := taskID(r)
	if id == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	result := s.registry.Execute(r.Context(), "delete_task", map[string]any{
		"user_id": userID(r),
		"task_id": id,
	})
	if !result.OK() {
		s.writeToolError(w, result.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Payload)
}
