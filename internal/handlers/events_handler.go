package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"todohub/internal/services"
)

// EventsHandler exposes the degraded-mode cache for monitoring and operator
// replay.
type EventsHandler struct {
	publisher services.EventPublisher
}

func NewEventsHandler(publisher services.EventPublisher) *EventsHandler {
	return &EventsHandler{publisher: publisher}
}

// GET /api/events/cache
func (h *EventsHandler) CacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cache_size": h.publisher.CacheSize(),
		"degraded":   h.publisher.IsDegraded(),
	})
}

// GET /api/events/cache/entries
func (h *EventsHandler) CachedEntries(c *gin.Context) {
	c.JSON(http.StatusOK, h.publisher.CachedEvents())
}

// POST /api/events/replay
func (h *EventsHandler) Replay(c *gin.Context) {
	replayed, remaining := h.publisher.ReplayCache(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"replayed":  replayed,
		"remaining": remaining,
		"degraded":  h.publisher.IsDegraded(),
	})
}

// DELETE /api/events/cache
func (h *EventsHandler) ClearCache(c *gin.Context) {
	h.publisher.ClearCache()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
