package repositories

import (
	"context"
	"database/sql"
	"time"

	"todohub/internal/models"
)

type NotificationRepository interface {
	Store(ctx context.Context, n *models.Notification) error
	FindAll(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id int64, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	ExistsForTask(ctx context.Context, taskID int64, nType models.NotificationType, since time.Time) (bool, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Store(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, task_id, type, title, message, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		n.UserID, n.TaskID, n.Type, n.Title, n.Message, n.Read, n.CreatedAt,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) FindAll(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT id, user_id, task_id, type, title, message, read, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.TaskID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`, userID,
	).Scan(&count)
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id int64, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	return err
}

func (r *notificationRepository) ExistsForTask(ctx context.Context, taskID int64, nType models.NotificationType, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE task_id = $1 AND type = $2 AND created_at >= $3
		)`, taskID, nType, since,
	).Scan(&exists)
	return exists, err
}
