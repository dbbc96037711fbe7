// internal/models/task.go
package models

import "time"

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Task represents a single todo item. Recurring tasks carry a recurrence
// rule; completing one spawns the next instance, which points back at the
// task that spawned it via ParentTaskID and never inherits the reminder.
type Task struct {
	ID             int64        `json:"id"`
	UserID         string       `json:"user_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Completed      bool         `json:"completed"`
	Priority       TaskPriority `json:"priority"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	ReminderAt     *time.Time   `json:"reminder_at,omitempty"`
	Tags           []string     `json:"tags,omitempty"`
	RecurrenceRule string       `json:"recurrence_rule,omitempty"`
	ParentTaskID   *int64       `json:"parent_task_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	UserID    string
	Completed *bool
	Priority  *TaskPriority
	Search    *string
	SortBy    string // due_date|priority|created_at|title
	SortOrder string // asc|desc
}
