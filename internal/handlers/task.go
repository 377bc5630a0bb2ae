package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/syncd-app/syncd-api/internal/authz"
	"github.com/syncd-app/syncd-api/internal/models"
	"github.com/syncd-app/syncd-api/internal/repository"
	"github.com/syncd-app/syncd-api/internal/scheduler"
)

type TaskHandler struct {
	tasks     repository.TaskRepository
	scheduler *scheduler.Service
	logger    zerolog.Logger
}

type taskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	DueDate     *time.Time          `json:"due_date"`
	Priority    models.TaskPriority `json:"priority"`
	Status      models.TaskStatus   `json:"status"`
	Tags        []string            `json:"tags"`
}

func NewTaskHandler(tasks repository.TaskRepository, sched *scheduler.Service, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:     tasks,
		scheduler: sched,
		logger:    logger.With().Str("handler", "task").Logger(),
	}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	tasks, err := h.tasks.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list tasks")
		http.Error(w, "Error fetching tasks", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	req, ok := decodeTaskRequest(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Create(r.Context(), models.Task{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
		Tags:        req.Tags,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create task")
		http.Error(w, "Error creating task", http.StatusInternalServerError)
		return
	}

	h.scheduleReminder(r, task)

	writeJSON(w, http.StatusCreated, map[string]interface{}{"task": task})
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	taskID, err := strconv.ParseInt(mux.Vars(r)["taskID"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	req, ok := decodeTaskRequest(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Update(r.Context(), models.Task{
		ID:          taskID,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
		Tags:        req.Tags,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to update task")
		http.Error(w, "Error updating task", http.StatusInternalServerError)
		return
	}

	h.scheduleReminder(r, task)

	writeJSON(w, http.StatusOK, map[string]interface{}{"task": task})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	taskID, err := strconv.ParseInt(mux.Vars(r)["taskID"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	if err := h.tasks.Delete(r.Context(), taskID, userID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete task")
		http.Error(w, "Error deleting task", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

// scheduleReminder enqueues a due-date reminder after a successful write.
// Scheduling failures are logged, never surfaced: the task write already
// committed.
func (h *TaskHandler) scheduleReminder(r *http.Request, task models.Task) {
	if task.DueDate == nil {
		return
	}
	if err := h.scheduler.ScheduleTaskReminder(r.Context(), task.ID, task.UserID, *task.DueDate); err != nil {
		h.logger.Error().Err(err).Int64("task_id", task.ID).Msg("failed to schedule task reminder")
	}
}

func decodeTaskRequest(w http.ResponseWriter, r *http.Request) (taskRequest, bool) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return req, false
	}

	if req.Priority == "" {
		req.Priority = models.TaskPriorityMedium
	}
	if req.Status == "" {
		req.Status = models.TaskStatusTodo
	}
	if !models.IsValidPriority(req.Priority) || !models.IsValidStatus(req.Status) {
		http.Error(w, "Invalid priority or status", http.StatusBadRequest)
		return req, false
	}

	return req, true
}
