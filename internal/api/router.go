package api

import (
	"log/slog"
	"time"

	"vigil/internal/api/handlers"
	"vigil/internal/api/middleware"
	"vigil/internal/core"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Service  core.ServiceInterface
	Timezone *time.Location
	APIKey   string
	Logger   *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.ContentType())

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler()
	router.GET("/health", healthHandler.GetHealth)

	// API v1 routes (with authentication)
	v1 := router.Group("/v1")
	v1.Use(authMiddleware(config.APIKey))
	{
		// Session event ingestion
		eventsHandler := handlers.NewEventsHandler(config.Service, config.Logger)
		v1.POST("/events", eventsHandler.ReportEvent)

		// Per-child usage and controls
		childrenHandler := handlers.NewChildrenHandler(config.Service, config.Timezone, config.Logger)
		v1.GET("/children/:id/aggregate", childrenHandler.GetAggregate)
		v1.GET("/children/:id/verdict", childrenHandler.GetVerdict)
		v1.GET("/children/:id/controls", childrenHandler.GetControls)
		v1.PUT("/children/:id/controls", childrenHandler.UpdateControls)

		// Rewardable tasks
		tasksHandler := handlers.NewTasksHandler(config.Service, config.Logger)
		v1.POST("/tasks", tasksHandler.CreateTask)
		v1.GET("/tasks", tasksHandler.ListTasks)

		// Task completion claims and reviews
		completionsHandler := handlers.NewCompletionsHandler(config.Service, config.Logger)
		v1.POST("/completions", completionsHandler.ClaimCompletion)
		v1.POST("/completions/:id/approve", completionsHandler.ApproveCompletion)
		v1.POST("/completions/:id/reject", completionsHandler.RejectCompletion)
	}

	return router
}

// authMiddleware verifies API key authentication
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-Vigil-Key")
		if providedKey != apiKey {
			c.JSON(401, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
