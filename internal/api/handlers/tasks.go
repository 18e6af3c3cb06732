package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vigil/internal/core"

	"github.com/gin-gonic/gin"
)

// TasksHandler handles rewardable task requests
type TasksHandler struct {
	service core.ServiceInterface
	logger  *slog.Logger
}

// NewTasksHandler creates a new tasks handler
func NewTasksHandler(service core.ServiceInterface, logger *slog.Logger) *TasksHandler {
	return &TasksHandler{
		service: service,
		logger:  logger,
	}
}

// CreateTask registers a rewardable task
// POST /tasks
func (h *TasksHandler) CreateTask(c *gin.Context) {
	var req struct {
		Title         string `json:"title" binding:"required"`
		RewardMinutes int    `json:"reward_minutes" binding:"required,gt=0"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	task, err := h.service.CreateTask(c.Request.Context(), &core.Task{
		Title:         req.Title,
		RewardMinutes: req.RewardMinutes,
	})
	if err != nil {
		if errors.Is(err, core.ErrInvalidTaskTitle) || errors.Is(err, core.ErrInvalidRewardMinutes) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
				"code":  "INVALID_TASK",
			})
			return
		}

		h.logger.Error("Failed to create task",
			"component", "api",
			"title", req.Title,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create task",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusCreated, formatTaskResponse(task))
}

// ListTasks returns all rewardable tasks
// GET /tasks
func (h *TasksHandler) ListTasks(c *gin.Context) {
	tasks, err := h.service.ListTasks(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list tasks",
			"component", "api",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve tasks",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	response := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		response = append(response, formatTaskResponse(task))
	}

	c.JSON(http.StatusOK, response)
}

func formatTaskResponse(task *core.Task) gin.H {
	return gin.H{
		"id":             task.ID,
		"title":          task.Title,
		"reward_minutes": task.RewardMinutes,
		"created_at":     task.CreatedAt.Format(time.RFC3339),
	}
}
