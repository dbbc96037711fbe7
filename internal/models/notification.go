package models

import "time"

type NotificationType string

const (
	NotificationTaskCompleted   NotificationType = "task_completed"
	NotificationDueDateReminder NotificationType = "due_date_reminder"
	NotificationReminder        NotificationType = "reminder"
)

// Notification is an in-app message for a user, optionally tied to a task.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	TaskID    *int64           `json:"task_id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
