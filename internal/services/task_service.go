// internal/services/tasks.go
package services

import (
	"context"
	"errors"
	"time"

	"todohub/internal/logger"
	"todohub/internal/models"
	"todohub/internal/repositories"
)

// ErrReminderAfterDue is returned when a task's reminder is not strictly
// before its due date.
var ErrReminderAfterDue = errors.New("reminder_at must be before due_date")

// TaskService defines the interface for task-related business logic,
// including the lifecycle orchestration around completion: notification,
// next recurring instance, event emission and reminder re-arming.
type TaskService interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id int64, userID string) (*models.Task, error)
	GetAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) (*models.Task, error)
	Delete(ctx context.Context, id int64, userID string) error

	Complete(ctx context.Context, id int64, userID string) (*models.Task, error)
	Reopen(ctx context.Context, id int64, userID string) (*models.Task, error)

	// DueSoonSweep creates "due tomorrow" notifications; run daily.
	DueSoonSweep(ctx context.Context) error
}

type taskService struct {
	repo          repositories.TaskRepository
	recurrence    RecurrenceService
	notifications NotificationService
	publisher     EventPublisher
	reminders     ReminderScheduler
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(
	repo repositories.TaskRepository,
	recurrence RecurrenceService,
	notifications NotificationService,
	publisher EventPublisher,
	reminders ReminderScheduler,
) TaskService {
	return &taskService{
		repo:          repo,
		recurrence:    recurrence,
		notifications: notifications,
		publisher:     publisher,
		reminders:     reminders,
	}
}

// validateTask checks the cross-field invariants surfaced to the caller as
// validation failures: reminder strictly before due date, and a recurrence
// rule that parses and still has a future occurrence.
func (s *taskService) validateTask(task *models.Task) error {
	if task.ReminderAt != nil && task.DueDate != nil && !task.ReminderAt.Before(*task.DueDate) {
		return ErrReminderAfterDue
	}
	if task.RecurrenceRule != "" {
		anchor := time.Now().UTC()
		if task.DueDate != nil {
			anchor = *task.DueDate
		}
		if err := s.recurrence.Validate(task.RecurrenceRule, anchor); err != nil {
			return err
		}
	}
	return nil
}

func (s *taskService) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if err := s.validateTask(task); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := s.repo.Store(ctx, task); err != nil {
		return nil, err
	}

	s.publisher.PublishTaskEvent(ctx, "created", task)
	s.armReminder(task)
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, id int64, userID string) (*models.Task, error) {
	return s.repo.FindByID(ctx, id, userID)
}

func (s *taskService) GetAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	return s.repo.FindAll(ctx, filter)
}

func (s *taskService) Update(ctx context.Context, task *models.Task) (*models.Task, error) {
	if err := s.validateTask(task); err != nil {
		return nil, err
	}
	task.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}

	s.publisher.PublishTaskEvent(ctx, "updated", task)

	// The reminder instant may have moved: sweep stale jobs before arming
	// the new one.
	s.reminders.Cancel(task.ID)
	s.armReminder(task)
	return task, nil
}

// Delete removes the task, sweeps its reminder jobs and emits the deleted
// event. Cancelling here is a contractual obligation of the deletion path:
// nothing else tells the scheduler the task is gone.
func (s *taskService) Delete(ctx context.Context, id int64, userID string) error {
	task, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}

	s.reminders.Cancel(id)
	s.publisher.PublishTaskEvent(ctx, "deleted", task)
	return nil
}

// Complete marks the task done and runs the rest of the lifecycle: the
// completion notification, the next recurring instance, the events and the
// new instance's reminder. Once the completion itself is persisted, every
// later failure is logged and swallowed so the user-visible operation
// cannot fail on infrastructure trouble.
func (s *taskService) Complete(ctx context.Context, id int64, userID string) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return task, nil
	}

	task.Completed = true
	task.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}

	if _, err := s.notifications.Create(ctx, userID, models.NotificationTaskCompleted,
		"Task completed", "Great job! You finished "+task.Title, &task.ID); err != nil {
		logger.Log.Error().Err(err).Int64("task_id", id).Msg("failed to create completion notification")
	}

	var next *models.Task
	if candidate, ok := s.recurrence.NextInstance(task); ok {
		now := time.Now().UTC()
		candidate.CreatedAt = now
		candidate.UpdatedAt = now
		if err := s.repo.Store(ctx, candidate); err != nil {
			logger.Log.Error().Err(err).Int64("task_id", id).Msg("failed to create next recurring instance")
		} else {
			next = candidate
			logger.Log.Info().Int64("task_id", id).Int64("next_id", next.ID).
				Msg("created next instance for recurring task")
		}
	}

	// Completion always goes out before the created event for the spawned
	// instance.
	s.publisher.PublishTaskEvent(ctx, "completed", task)
	if next != nil {
		s.publisher.PublishTaskEvent(ctx, "created", next)
		s.armReminder(next)
	}

	return task, nil
}

func (s *taskService) Reopen(ctx context.Context, id int64, userID string) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	task.Completed = false
	task.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	s.publisher.PublishTaskEvent(ctx, "updated", task)
	return task, nil
}

// armReminder schedules the task's reminder when one is set and the task is
// open. Scheduling failure is non-fatal to the calling operation.
func (s *taskService) armReminder(task *models.Task) {
	if task.ReminderAt == nil || task.Completed {
		return
	}
	if _, err := s.reminders.Schedule(task.ID, task.UserID, *task.ReminderAt); err != nil {
		logger.Log.Warn().Err(err).Int64("task_id", task.ID).Msg("failed to schedule reminder")
	}
}

// DueSoonSweep notifies owners of tasks due tomorrow, once per task.
func (s *taskService) DueSoonSweep(ctx context.Context) error {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, 1).Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, 1)

	tasks, err := s.repo.ListDueBetween(ctx, start, end)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		err := s.notifications.CreateIfAbsent(ctx, t.UserID, models.NotificationDueDateReminder,
			"Task due soon", t.Title+" is due tomorrow", t.ID, now.Truncate(24*time.Hour))
		if err != nil {
			logger.Log.Error().Err(err).Int64("task_id", t.ID).Msg("failed to create due-soon notification")
		}
	}
	logger.Log.Info().Int("count", len(tasks)).Msg("processed due-soon sweep")
	return nil
}
