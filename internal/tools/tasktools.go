package tools

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rubii22/chatbot-for-todoapp/internal/store"
)

func (r *Registry) registerBuiltins() {
	r.register(&Tool{
		Name:        "add_task",
		Description: "Add a new task for a user. Requires user_id and title.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{
					"type":        "string",
					"description": "The ID of the user creating the task",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "The title of the task",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Optional description of the task",
				},
			},
			"required": []string{"user_id", "title"},
		},
		Handler: r.handleAddTask,
	})

	r.register(&Tool{
		Name:        "list_tasks",
		Description: "List tasks for a user. Filter by status if specified.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{
					"type":        "string",
					"description": "The ID of the user whose tasks to retrieve",
				},
				"status": map[string]any{
					"type":        "string",
					"description": "Filter by status (all, pending, completed); defaults to all",
				},
			},
			"required": []string{"user_id"},
		},
		Handler: r.handleListTasks,
	})

	r.register(&Tool{
		Name:        "complete_task",
		Description: "Mark a task as completed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{
					"type":        "string",
					"description": "The ID of the user owning the task",
				},
				"task_id": map[string]any{
					"type":        "integer",
					"description": "The ID of the task to complete",
				},
			},
			"required": []string{"user_id", "task_id"},
		},
		Handler: r.handleCompleteTask,
	})

	r.register(&Tool{
		Name:        "delete_task",
		Description: "Delete a task.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{
					"type":        "string",
					"description": "The ID of the user owning the task",
				},
				"task_id": map[string]any{
					"type":        "integer",
					"description": "The ID of the task to delete",
				},
			},
			"required": []string{"user_id", "task_id"},
		},
		Handler: r.handleDeleteTask,
	})

	r.register(&Tool{
		Name:        "update_task",
		Description: "Update a task's title or description.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{
					"type":        "string",
					"description": "The ID of the user owning the task",
				},
				"task_id": map[string]any{
					"type":        "integer",
					"description": "The ID of the task to update",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "New title for the task (optional)",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "New description for the task (optional)",
				},
			},
			"required": []string{"user_id", "task_id"},
		},
		Handler: r.handleUpdateTask,
	})
}

// Tool handlers

func (r *Registry) handleAddTask(ctx context.Context, raw map[string]any) Result {
	var args addTaskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Failure(CodeBadArguments, "Invalid arguments for add_task: %v", err)
	}

	if !validUserID(args.UserID) {
		return Failure(CodeInvalidUserID, "Invalid user ID provided")
	}

	title := sanitize(args.Title)
	if title == "" {
		return Failure(CodeMissingTitle, "Title is required")
	}
	description := sanitizePtr(args.Description)

	task, err := r.store.CreateTask(args.UserID, title, description)
	if err != nil {
		r.logger.Error("add_task store failure", "error", err)
		return Failure(CodeStoreError, "Could not create task")
	}

	return Success(mutationPayload{
		TaskID: task.ID,
		Status: "created",
		Title:  task.Title,
	})
}

func (r *Registry) handleListTasks(ctx context.Context, raw map[string]any) Result {
	var args listTasksArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Failure(CodeBadArguments, "Invalid arguments for list_tasks: %v", err)
	}

	// An invalid user id is non-fatal here: the caller gets an empty list.
	if !validUserID(args.UserID) {
		return Success([]taskRecord{})
	}

	// Unrecognized filter values silently fall back to all.
	status := strings.ToLower(strings.TrimSpace(args.Status))
	if status != store.StatusPending && status != store.StatusCompleted {
		status = "all"
	}

	tasks, err := r.store.ListTasks(args.UserID, status)
	if err != nil {
		r.logger.Error("list_tasks store failure", "error", err)
		return Failure(CodeStoreError, "Could not list tasks")
	}

	records := make([]taskRecord, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, taskRecord{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			CreatedAt:   t.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
		})
	}
	return Success(records)
}

func (r *Registry) handleCompleteTask(ctx context.Context, raw map[string]any) Result {
	var args taskRefArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Failure(CodeBadArguments, "Invalid arguments for complete_task: %v", err)
	}

	if !validUserID(args.UserID) {
		return Failure(CodeInvalidUserID, "Invalid user ID provided")
	}
	if args.TaskID <= 0 {
		return Failure(CodeInvalidTaskID, "Invalid task ID provided")
	}

	task, err := r.store.CompleteTask(args.UserID, args.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return Failure(CodeTaskNotFound, "Task with ID %d not found for user %s", args.TaskID, args.UserID)
	}
	if err != nil {
		r.logger.Error("complete_task store failure", "error", err)
		return Failure(CodeStoreError, "Could not complete task")
	}

	return Success(mutationPayload{
		TaskID: task.ID,
		Status: "completed",
		Title:  task.Title,
	})
}

func (r *Registry) handleDeleteTask(ctx context.Context, raw map[string]any) Result {
	var args taskRefArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Failure(CodeBadArguments, "Invalid arguments for delete_task: %v", err)
	}

	if !validUserID(args.UserID) {
		return Failure(CodeInvalidUserID, "Invalid user ID provided")
	}
	if args.TaskID <= 0 {
		return Failure(CodeInvalidTaskID, "Invalid task ID provided")
	}

	// DeleteTask returns the removed row, so the title survives deletion.
	task, err := r.store.DeleteTask(args.UserID, args.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return Failure(CodeTaskNotFound, "Task with ID %d not found for user %s", args.TaskID, args.UserID)
	}
	if err != nil {
		r.logger.Error("delete_task store failure", "error", err)
		return Failure(CodeStoreError, "Could not delete task")
	}

	return Success(mutationPayload{
		TaskID: task.ID,
		Status: "deleted",
		Title:  task.Title,
	})
}

func (r *Registry) handleUpdateTask(ctx context.Context, raw map[string]any) Result {
	var args updateTaskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Failure(CodeBadArguments, "Invalid arguments for update_task: %v", err)
	}

	if !validUserID(args.UserID) {
		return Failure(CodeInvalidUserID, "Invalid user ID provided")
	}
	if args.TaskID <= 0 {
		return Failure(CodeInvalidTaskID, "Invalid task ID provided")
	}
	if args.Title == nil && args.Description == nil {
		return Failure(CodeNoUpdateParams, "At least one parameter (title or description) must be provided for update")
	}

	title := sanitizePtr(args.Title)
	description := sanitizePtr(args.Description)

	task, err := r.store.UpdateTask(args.UserID, args.TaskID, title, description)
	if errors.Is(err, store.ErrTaskNotFound) {
		return Failure(CodeTaskNotFound, "Task with ID %d not found for user %s", args.TaskID, args.UserID)
	}
	if err != nil {
		r.logger.Error("update_task store failure", "error", err)
		return Failure(CodeStoreError, "Could not update task")
	}

	return Success(mutationPayload{
		TaskID: task.ID,
		Status: "updated",
		Title:  task.Title,
	})
}
