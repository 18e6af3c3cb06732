package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vigil/internal/core"

	"github.com/gin-gonic/gin"
)

// EventsHandler handles session event reports from devices
type EventsHandler struct {
	service core.ServiceInterface
	logger  *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(service core.ServiceInterface, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		service: service,
		logger:  logger,
	}
}

// ReportEvent ingests a start/stop/heartbeat report
// POST /events
func (h *EventsHandler) ReportEvent(c *gin.Context) {
	var req struct {
		Type        string `json:"type" binding:"required"`
		ChildID     string `json:"child_id" binding:"required"`
		DeviceID    string `json:"device_id" binding:"required"`
		AppName     string `json:"app_name"`
		AppCategory string `json:"app_category"`
		Timestamp   string `json:"timestamp" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	timestamp, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid timestamp. Use RFC3339",
			"code":  "INVALID_TIMESTAMP",
		})
		return
	}

	event := core.SessionEvent{
		Type:        core.EventType(req.Type),
		ChildID:     req.ChildID,
		DeviceID:    req.DeviceID,
		AppName:     req.AppName,
		AppCategory: core.AppCategory(req.AppCategory),
		Timestamp:   timestamp,
	}

	result, err := h.service.ReportSessionEvent(c.Request.Context(), event)
	if err != nil {
		if errors.Is(err, core.ErrInvalidEvent) || errors.Is(err, core.ErrInvalidAppCategory) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
				"code":  "INVALID_EVENT",
			})
			return
		}

		h.logger.Error("Failed to process session event",
			"component", "api",
			"child_id", req.ChildID,
			"device_id", req.DeviceID,
			"type", req.Type,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process event",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": result.SessionID,
		"verdict":    result.Verdict,
	})
}
