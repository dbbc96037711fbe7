package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"todohub/internal/handlers"
	"todohub/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	jwtSecret []byte,
	taskHandler *handlers.TaskHandler,
	notificationHandler *handlers.NotificationHandler,
	eventsHandler *handlers.EventsHandler,
) *gin.Engine {

	// ---- public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ---- protected
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtSecret))

	// TASKS
	tasks := api.Group("/tasks")
	{
		tasks.GET("/recurrence-options", taskHandler.RecurrenceOptions)
		tasks.POST("/", taskHandler.Create)
		tasks.GET("/", taskHandler.GetAll)
		tasks.GET("/:id", taskHandler.GetByID)
		tasks.PUT("/:id", taskHandler.Update)
		tasks.DELETE("/:id", taskHandler.Delete)
		tasks.POST("/:id/complete", taskHandler.Complete)
		tasks.POST("/:id/uncomplete", taskHandler.Uncomplete)
	}

	// NOTIFICATIONS
	notifications := api.Group("/notifications")
	{
		notifications.GET("/", notificationHandler.GetAll)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
	}

	// EVENTS (degraded-mode cache monitoring and replay)
	eventsGroup := api.Group("/events")
	{
		eventsGroup.GET("/cache", eventsHandler.CacheStatus)
		eventsGroup.GET("/cache/entries", eventsHandler.CachedEntries)
		eventsGroup.POST("/replay", eventsHandler.Replay)
		eventsGroup.DELETE("/cache", eventsHandler.ClearCache)
	}

	return r
}
