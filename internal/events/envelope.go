// Package events defines the CloudEvents 1.0 envelope used on the wire and
// the builder that wraps domain payloads into it.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	SpecVersion     = "1.0"
	DataContentType = "application/json"

	TypeTaskCreated       = "todo.task.created"
	TypeTaskUpdated       = "todo.task.updated"
	TypeTaskCompleted     = "todo.task.completed"
	TypeTaskDeleted       = "todo.task.deleted"
	TypeReminderTriggered = "todo.reminder.triggered"
)

// Clock supplies the envelope emission timestamp. Injected so the builder
// stays deterministic under test.
type Clock func() time.Time

// Envelope is the wire format consumed downstream. Field names and layout
// follow the CloudEvents 1.0 spec and must not change.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	ID              string          `json:"id"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// TaskEventData is the payload for task lifecycle events: a snapshot of the
// task at emission time plus the operation name.
type TaskEventData struct {
	TaskID         int64      `json:"task_id"`
	UserID         string     `json:"user_id"`
	Operation      string     `json:"operation"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Completed      bool       `json:"completed"`
	Priority       string     `json:"priority"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	ReminderAt     *time.Time `json:"reminder_at,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	RecurrenceRule string     `json:"recurrence_rule,omitempty"`
	ParentTaskID   *int64     `json:"parent_task_id,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// ReminderEventData is the payload for reminder events.
type ReminderEventData struct {
	TaskID       int64      `json:"task_id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ReminderAt   time.Time  `json:"reminder_at"`
	TimeUntilDue string     `json:"time_until_due,omitempty"`
}

// Builder produces envelopes with a fixed source and an injected clock.
type Builder struct {
	source string
	clock  Clock
}

func NewBuilder(source string, clock Clock) *Builder {
	if clock == nil {
		clock = time.Now
	}
	return &Builder{source: source, clock: clock}
}

// Build wraps an already-marshalled payload. Every call mints a fresh id,
// even for re-emissions of the same fact; downstream idempotency, where
// needed, keys off the payload.
func (b *Builder) Build(eventType string, data json.RawMessage) Envelope {
	return Envelope{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          b.source,
		ID:              "evt_" + uuid.New().String(),
		Time:            b.clock().UTC(),
		DataContentType: DataContentType,
		Data:            data,
	}
}
