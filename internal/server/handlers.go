package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/taskwire/taskwire/internal/server/middleware"
	"github.com/taskwire/taskwire/internal/store"
	"github.com/taskwire/taskwire/internal/workflow"
)

// registerAPIRoutes mounts the REST surface: the durable notification reads
// and the task mutations that trigger the realtime fan-out.
func (a *App) registerAPIRoutes(mux *http.ServeMux, authn middleware.Middleware) {
	api := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h,
			middleware.RequestMetadataMiddleware(),
			authn,
			middleware.NewRequestLogger(a.logger),
		)
	}

	mux.Handle("GET /api/notifications", api(a.handleListNotifications))
	mux.Handle("POST /api/notifications/read", api(a.handleMarkNotificationsRead))

	mux.Handle("POST /api/tasks", api(a.handleCreateTask))
	mux.Handle("GET /api/tasks/{id}", api(a.handleGetTask))
	mux.Handle("PATCH /api/tasks/{id}", api(a.handleUpdateTask))
	mux.Handle("DELETE /api/tasks/{id}", api(a.handleDeleteTask))
	mux.Handle("POST /api/tasks/{id}/comments", api(a.handleAddComment))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, "ok", nil)
	})
}

func userFrom(r *http.Request) int64 {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		return 0
	}
	return reqMeta.UserID
}

func taskIDFrom(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (a *App) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := a.notifications.NotificationsForUser(r.Context(), userFrom(r))
	if err != nil {
		a.logger.Error("Failed to list notifications", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Error fetching notifications")
		return
	}
	respondJSON(w, http.StatusOK, "Notifications retrieved", map[string]any{"notifications": notifications})
}

func (a *App) handleMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	updated, err := a.notifications.MarkAllRead(r.Context(), userFrom(r))
	if err != nil {
		a.logger.Error("Failed to mark notifications read", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Error updating notifications")
		return
	}
	respondJSON(w, http.StatusOK, "Notifications marked as read", map[string]any{"updated": updated})
}

func (a *App) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in workflow.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := a.tasks.CreateTask(r.Context(), userFrom(r), in)
	if errors.Is(err, workflow.ErrTitleRequired) {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if err != nil {
		a.logger.Error("Failed to create task", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Error creating task")
		return
	}
	respondJSON(w, http.StatusCreated, "Task created successfully", map[string]any{"task": task})
}

func (a *App) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	task, assignees, err := a.tasks.Task(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		a.logger.Error("Failed to load task", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Error fetching task")
		return
	}
	respondJSON(w, http.StatusOK, "Task retrieved successfully", map[string]any{
		"task":      task,
		"assignees": assignees,
	})
}

func (a *App) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	var in workflow.UpdateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := a.tasks.UpdateTask(r.Context(), userFrom(r), id, in)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		a.logger.Error("Failed to update task", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Error updating task")
		return
	}
	respondJSON(w, http.StatusOK, "Task updated successfully", map[string]any{"task": task})
}

func (a *App) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	err = a.tasks.DeleteTask(r.Context(), userFrom(r), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		a.logger.Error("Failed to delete task", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Error deleting task")
		return
	}
	respondJSON(w, http.StatusOK, "Task deleted successfully", nil)
}

func (a *App) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDFrom(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	var in struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Content == "" {
		respondError(w, http.StatusBadRequest, "Comment content is required")
		return
	}

	comment, err := a.tasks.AddComment(r.Context(), userFrom(r), id, in.Content)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		a.logger.Error("Failed to add comment", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Error adding comment")
		return
	}
	respondJSON(w, http.StatusCreated, "Comment added", map[string]any{"comment": comment})
}
