package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tasktrack/apiserver/internal/services"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/internal/taskstatus"
	"github.com/tasktrack/apiserver/types"
)

// TaskHandler provides HTTP handlers for the caller's tasks.
type TaskHandler struct {
	taskService *services.TaskService
	logger      *slog.Logger
}

func NewTaskHandler(taskService *services.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// TaskRouter registers task routes on the given router. Every route requires
// authentication.
func TaskRouter(r chi.Router, handler *TaskHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Post("/", handler.CreateTask)
	r.Get("/", handler.ListTasks)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Patch("/", handler.UpdateTaskStatus)
		r.Delete("/", handler.DeleteTask)
	})
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	task, err := h.taskService.Create(r.Context(), ownerID, req.Title, req.Description)
	if err != nil {
		h.writeTaskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	offset, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := h.taskService.List(r.Context(), ownerID, offset, limit)
	if err != nil {
		h.writeTaskError(w, r, err)
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, toTaskResponse(task))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.Get(r.Context(), id, ownerID)
	if err != nil {
		h.writeTaskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateTaskStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	requested := req.NewStatus
	if requested == nil {
		requested = req.Status
	}
	if requested == nil {
		writeError(w, http.StatusBadRequest, "new_status is required")
		return
	}

	task, err := h.taskService.UpdateStatus(r.Context(), id, ownerID, *requested)
	if err != nil {
		h.writeTaskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.taskService.Delete(r.Context(), id, ownerID); err != nil {
		h.writeTaskError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) owner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ownerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return 0, false
	}
	return ownerID, true
}

func (h *TaskHandler) writeTaskError(w http.ResponseWriter, r *http.Request, err error) {
	var transitionErr *taskstatus.TransitionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, taskstatus.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Invalid status value")
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusBadRequest, transitionErr.Error())
	case errors.Is(err, services.ErrInvalidTitle), errors.Is(err, services.ErrTitleTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrOwnerNotFound):
		h.logger.ErrorContext(r.Context(), "authenticated caller has no user row", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		h.logger.ErrorContext(r.Context(), "task request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// UpdateTaskStatusRequest carries the requested status. status is accepted
// as an alias of new_status.
type UpdateTaskStatusRequest struct {
	NewStatus *string `json:"new_status"`
	Status    *string `json:"status"`
}

type TaskResponse struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsDeleted   bool      `json:"is_deleted"`
}

func toTaskResponse(task types.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		OwnerID:     task.OwnerID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status.String(),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		IsDeleted:   task.IsDeleted,
	}
}
