package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vigil/internal/core"

	"github.com/gin-gonic/gin"
)

// CompletionsHandler handles task completion claims and reviews
type CompletionsHandler struct {
	service core.ServiceInterface
	logger  *slog.Logger
}

// NewCompletionsHandler creates a new completions handler
func NewCompletionsHandler(service core.ServiceInterface, logger *slog.Logger) *CompletionsHandler {
	return &CompletionsHandler{
		service: service,
		logger:  logger,
	}
}

// ClaimCompletion records a child's claim of a completed task
// POST /completions
func (h *CompletionsHandler) ClaimCompletion(c *gin.Context) {
	var req struct {
		TaskID  string `json:"task_id" binding:"required"`
		ChildID string `json:"child_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	completion, err := h.service.ClaimCompletion(c.Request.Context(), req.TaskID, req.ChildID)
	if err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Task not found",
				"code":  "TASK_NOT_FOUND",
			})
			return
		}

		h.logger.Error("Failed to record completion",
			"component", "api",
			"task_id", req.TaskID,
			"child_id", req.ChildID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record completion",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusCreated, formatCompletionResponse(completion))
}

// ApproveCompletion approves a pending completion and credits its reward
// POST /completions/:id/approve
func (h *CompletionsHandler) ApproveCompletion(c *gin.Context) {
	completionID := c.Param("id")

	if err := h.service.ApproveCompletion(c.Request.Context(), completionID); err != nil {
		h.reviewError(c, completionID, "approve", err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

// RejectCompletion rejects a pending completion
// POST /completions/:id/reject
func (h *CompletionsHandler) RejectCompletion(c *gin.Context) {
	completionID := c.Param("id")

	if err := h.service.RejectCompletion(c.Request.Context(), completionID); err != nil {
		h.reviewError(c, completionID, "reject", err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func (h *CompletionsHandler) reviewError(c *gin.Context, completionID, action string, err error) {
	if errors.Is(err, core.ErrCompletionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Completion not found",
			"code":  "COMPLETION_NOT_FOUND",
		})
		return
	}
	if errors.Is(err, core.ErrAlreadyReviewed) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Completion has already been reviewed",
			"code":  "ALREADY_REVIEWED",
		})
		return
	}

	h.logger.Error("Failed to review completion",
		"component", "api",
		"completion_id", completionID,
		"action", action,
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to review completion",
		"code":  "INTERNAL_ERROR",
	})
}

func formatCompletionResponse(completion *core.TaskCompletion) gin.H {
	response := gin.H{
		"id":           completion.ID,
		"task_id":      completion.TaskID,
		"child_id":     completion.ChildID,
		"status":       string(completion.Status),
		"completed_at": completion.CompletedAt.Format(time.RFC3339),
	}

	if completion.ReviewedAt != nil {
		response["reviewed_at"] = completion.ReviewedAt.Format(time.RFC3339)
	}

	return response
}
