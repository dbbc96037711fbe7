package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"todohub/internal/logger"
	"todohub/internal/models"
	"todohub/internal/repositories"
	"todohub/internal/services"
)

type TaskHandler struct {
	service    services.TaskService
	recurrence services.RecurrenceService
}

func NewTaskHandler(service services.TaskService, recurrence services.RecurrenceService) *TaskHandler {
	return &TaskHandler{service: service, recurrence: recurrence}
}

// validationStatus maps service validation errors to the right HTTP status;
// anything else is a 500.
func validationStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, services.ErrMalformedRule),
		errors.Is(err, services.ErrNoFutureOccurrence),
		errors.Is(err, services.ErrReminderAfterDue):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, repositories.ErrTaskNotFound):
		return http.StatusNotFound, true
	}
	return 0, false
}

func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req struct {
		Title          string              `json:"title" binding:"required"`
		Description    string              `json:"description"`
		Priority       models.TaskPriority `json:"priority"` // low|medium|high
		DueDate        string              `json:"due_date"`    // RFC3339
		ReminderAt     string              `json:"reminder_at"` // RFC3339
		Tags           []string            `json:"tags"`
		RecurrenceRule string              `json:"recurrence_rule"`
	}

	userID := getUserID(c)
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.Warn().Err(err).Str("user_id", userID).Msg("task create: bad request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	due, err := parseOptionalTime(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date (RFC3339)"})
		return
	}
	rem, err := parseOptionalTime(req.ReminderAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reminder_at (RFC3339)"})
		return
	}

	task := &models.Task{
		UserID:         userID,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		DueDate:        due,
		ReminderAt:     rem,
		Tags:           req.Tags,
		RecurrenceRule: req.RecurrenceRule,
	}

	created, err := h.service.Create(c.Request.Context(), task)
	if err != nil {
		if status, ok := validationStatus(err); ok {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		logger.Log.Error().Err(err).Str("user_id", userID).Msg("task create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}
	logger.Log.Info().Int64("id", created.ID).Str("user_id", userID).Msg("task created")
	c.JSON(http.StatusCreated, created)
}

// GET /api/tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID := getUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	task, err := h.service.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		logger.Log.Error().Err(err).Int64("id", id).Msg("task get failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// GET /api/tasks
func (h *TaskHandler) GetAll(c *gin.Context) {
	userID := getUserID(c)

	filter := models.TaskFilter{
		UserID:    userID,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	if v, ok := c.GetQuery("completed"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Completed = &b
		}
	}
	if v, ok := c.GetQuery("priority"); ok {
		p := models.TaskPriority(v)
		filter.Priority = &p
	}
	if v, ok := c.GetQuery("search"); ok {
		filter.Search = &v
	}

	tasks, err := h.service.GetAll(c.Request.Context(), filter)
	if err != nil {
		logger.Log.Error().Err(err).Str("user_id", userID).Msg("task list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve tasks"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	current, err := h.service.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		logger.Log.Error().Err(err).Int64("id", id).Msg("task update: fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get task"})
		return
	}

	var req struct {
		Title          *string              `json:"title"`
		Description    *string              `json:"description"`
		Priority       *models.TaskPriority `json:"priority"`
		DueDate        *string              `json:"due_date"`    // RFC3339, "" clears
		ReminderAt     *string              `json:"reminder_at"` // RFC3339, "" clears
		Tags           []string             `json:"tags"`
		RecurrenceRule *string              `json:"recurrence_rule"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := *current
	if req.Title != nil {
		update.Title = *req.Title
	}
	if req.Description != nil {
		update.Description = *req.Description
	}
	if req.Priority != nil {
		update.Priority = *req.Priority
	}
	if req.DueDate != nil {
		t, err := parseOptionalTime(*req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date (RFC3339)"})
			return
		}
		update.DueDate = t
	}
	if req.ReminderAt != nil {
		t, err := parseOptionalTime(*req.ReminderAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reminder_at (RFC3339)"})
			return
		}
		update.ReminderAt = t
	}
	if req.Tags != nil {
		update.Tags = req.Tags
	}
	if req.RecurrenceRule != nil {
		update.RecurrenceRule = *req.RecurrenceRule
	}

	updated, err := h.service.Update(c.Request.Context(), &update)
	if err != nil {
		if status, ok := validationStatus(err); ok {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		logger.Log.Error().Err(err).Int64("id", id).Msg("task update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, repositories.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		logger.Log.Error().Err(err).Int64("id", id).Msg("task delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete task"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /api/tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) {
	userID := getUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	task, err := h.service.Complete(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		logger.Log.Error().Err(err).Int64("id", id).Msg("task complete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// POST /api/tasks/:id/uncomplete
func (h *TaskHandler) Uncomplete(c *gin.Context) {
	userID := getUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	task, err := h.service.Reopen(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		logger.Log.Error().Err(err).Int64("id", id).Msg("task reopen failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reopen task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// GET /api/tasks/recurrence-options
func (h *TaskHandler) RecurrenceOptions(c *gin.Context) {
	c.JSON(http.StatusOK, services.RecurrenceOptions)
}
