// internal/services/notification_service.go
package services

import (
	"context"
	"time"

	"todohub/internal/models"
	"todohub/internal/repositories"
)

// NotificationService defines the interface for in-app notifications.
type NotificationService interface {
	Create(ctx context.Context, userID string, nType models.NotificationType, title, message string, taskID *int64) (*models.Notification, error)
	CreateIfAbsent(ctx context.Context, userID string, nType models.NotificationType, title, message string, taskID int64, since time.Time) error
	GetAll(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id int64, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationService struct {
	repo repositories.NotificationRepository
}

func NewNotificationService(repo repositories.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

func (s *notificationService) Create(ctx context.Context, userID string, nType models.NotificationType, title, message string, taskID *int64) (*models.Notification, error) {
	n := &models.Notification{
		UserID:    userID,
		TaskID:    taskID,
		Type:      nType,
		Title:     title,
		Message:   message,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Store(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateIfAbsent skips creation when a notification of the same type
// already exists for the task since the given instant. Keeps repeated
// sweep runs from stacking duplicates.
func (s *notificationService) CreateIfAbsent(ctx context.Context, userID string, nType models.NotificationType, title, message string, taskID int64, since time.Time) error {
	exists, err := s.repo.ExistsForTask(ctx, taskID, nType, since)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.Create(ctx, userID, nType, title, message, &taskID)
	return err
}

func (s *notificationService) GetAll(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	return s.repo.FindAll(ctx, userID, unreadOnly)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id int64, userID string) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllRead(ctx, userID)
}
