package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"todohub/internal/logger"
	"todohub/internal/services"
)

type NotificationHandler struct {
	service services.NotificationService
}

func NewNotificationHandler(service services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// GET /api/notifications
func (h *NotificationHandler) GetAll(c *gin.Context) {
	userID := getUserID(c)
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))

	notifications, err := h.service.GetAll(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		logger.Log.Error().Err(err).Str("user_id", userID).Msg("notification list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := getUserID(c)
	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		logger.Log.Error().Err(err).Str("user_id", userID).Msg("unread count failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := getUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), id, userID); err != nil {
		logger.Log.Error().Err(err).Int64("id", id).Msg("mark read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := getUserID(c)
	if err := h.service.MarkAllRead(c.Request.Context(), userID); err != nil {
		logger.Log.Error().Err(err).Str("user_id", userID).Msg("mark all read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notifications read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
