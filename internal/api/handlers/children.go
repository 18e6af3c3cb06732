package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vigil/internal/core"

	"github.com/gin-gonic/gin"
)

// ChildrenHandler handles per-child usage and controls requests
type ChildrenHandler struct {
	service  core.ServiceInterface
	timezone *time.Location
	logger   *slog.Logger
}

// NewChildrenHandler creates a new children handler
func NewChildrenHandler(service core.ServiceInterface, timezone *time.Location, logger *slog.Logger) *ChildrenHandler {
	if timezone == nil {
		timezone = time.UTC
	}
	return &ChildrenHandler{
		service:  service,
		timezone: timezone,
		logger:   logger,
	}
}

// GetAggregate returns a child's usage rollup for a calendar day
// GET /children/:id/aggregate?date=YYYY-MM-DD (defaults to today)
func (h *ChildrenHandler) GetAggregate(c *gin.Context) {
	childID := c.Param("id")

	date := time.Now().In(h.timezone)
	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, h.timezone)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid date format. Use YYYY-MM-DD",
				"code":  "INVALID_DATE_FORMAT",
			})
			return
		}
		date = parsed
	}

	aggregate, err := h.service.GetDailyAggregate(c.Request.Context(), childID, date)
	if err != nil {
		h.logger.Error("Failed to get daily aggregate",
			"component", "api",
			"child_id", childID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve aggregate",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, formatAggregateResponse(aggregate))
}

// GetVerdict returns the current policy verdict for a child
// GET /children/:id/verdict
func (h *ChildrenHandler) GetVerdict(c *gin.Context) {
	childID := c.Param("id")

	verdict, err := h.service.GetVerdict(c.Request.Context(), childID, time.Now().In(h.timezone))
	if err != nil {
		h.logger.Error("Failed to evaluate verdict",
			"component", "api",
			"child_id", childID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to evaluate verdict",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, verdict)
}

// GetControls returns a child's controls configuration
// GET /children/:id/controls
func (h *ChildrenHandler) GetControls(c *gin.Context) {
	childID := c.Param("id")

	controls, err := h.service.GetControls(c.Request.Context(), childID)
	if err != nil {
		if errors.Is(err, core.ErrControlsNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Controls not found",
				"code":  "CONTROLS_NOT_FOUND",
			})
			return
		}

		h.logger.Error("Failed to get controls",
			"component", "api",
			"child_id", childID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve controls",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, formatControlsResponse(controls))
}

// UpdateControls replaces a child's controls configuration
// PUT /children/:id/controls
func (h *ChildrenHandler) UpdateControls(c *gin.Context) {
	childID := c.Param("id")

	var req struct {
		Enabled                 bool    `json:"enabled"`
		DailyTimeLimitMinutes   *int    `json:"daily_time_limit_minutes"`
		BedtimeStart            *string `json:"bedtime_start"`
		BedtimeEnd              *string `json:"bedtime_end"`
		WarningThresholdMinutes int     `json:"warning_threshold_minutes"`
		FocusModeUntil          *string `json:"focus_mode_until"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	controls := &core.ParentalControls{
		ChildID:                 childID,
		Enabled:                 req.Enabled,
		DailyTimeLimitMinutes:   req.DailyTimeLimitMinutes,
		WarningThresholdMinutes: req.WarningThresholdMinutes,
	}

	if req.BedtimeStart != nil {
		start, err := core.ParseTimeOfDay(*req.BedtimeStart)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid bedtime_start. Use HH:MM",
				"code":  "INVALID_TIME_OF_DAY",
			})
			return
		}
		controls.BedtimeStart = &start
	}
	if req.BedtimeEnd != nil {
		end, err := core.ParseTimeOfDay(*req.BedtimeEnd)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid bedtime_end. Use HH:MM",
				"code":  "INVALID_TIME_OF_DAY",
			})
			return
		}
		controls.BedtimeEnd = &end
	}
	if req.FocusModeUntil != nil {
		until, err := time.Parse(time.RFC3339, *req.FocusModeUntil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid focus_mode_until. Use RFC3339",
				"code":  "INVALID_TIMESTAMP",
			})
			return
		}
		controls.FocusModeUntil = &until
	}

	if err := h.service.UpdateControls(c.Request.Context(), controls); err != nil {
		if errors.Is(err, core.ErrInvalidControls) || errors.Is(err, core.ErrInvalidChildID) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
				"code":  "INVALID_CONTROLS",
			})
			return
		}

		h.logger.Error("Failed to update controls",
			"component", "api",
			"child_id", childID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save controls",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, formatControlsResponse(controls))
}

// Helper functions

func formatAggregateResponse(aggregate *core.DailyAggregate) gin.H {
	return gin.H{
		"child_id":              aggregate.ChildID,
		"date":                  aggregate.Date.Format("2006-01-02"),
		"total_seconds":         aggregate.TotalSeconds,
		"educational_seconds":   aggregate.EducationalSeconds,
		"entertainment_seconds": aggregate.EntertainmentSeconds,
		"bonus_minutes":         aggregate.BonusMinutes,
		"session_count":         aggregate.SessionCount,
	}
}

func formatControlsResponse(controls *core.ParentalControls) gin.H {
	response := gin.H{
		"child_id":                  controls.ChildID,
		"enabled":                   controls.Enabled,
		"warning_threshold_minutes": controls.WarningThresholdMinutes,
	}

	if controls.DailyTimeLimitMinutes != nil {
		response["daily_time_limit_minutes"] = *controls.DailyTimeLimitMinutes
	}
	if controls.BedtimeStart != nil {
		response["bedtime_start"] = controls.BedtimeStart.String()
	}
	if controls.BedtimeEnd != nil {
		response["bedtime_end"] = controls.BedtimeEnd.String()
	}
	if controls.FocusModeUntil != nil {
		response["focus_mode_until"] = controls.FocusModeUntil.Format(time.RFC3339)
	}

	return response
}
