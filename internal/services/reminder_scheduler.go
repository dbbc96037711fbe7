// internal/services/reminder_scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"todohub/internal/jobs"
	"todohub/internal/logger"
	"todohub/internal/metrics"
	"todohub/internal/models"
	"todohub/internal/repositories"
)

// ReminderScheduler arms one-shot reminder jobs for tasks. Job ids are a
// composite of the task id and the reminder instant, so rescheduling the
// same task for a different instant yields a distinct job and a stale job
// from a since-changed reminder is never matched by task id alone.
//
// Cancellation can race with firing; the fire-time re-check (task still
// exists, not completed, reminder unchanged) is the authoritative guard,
// not the cancel call.
type ReminderScheduler interface {
	Schedule(taskID int64, userID string, reminderAt time.Time) (string, error)
	Cancel(taskID int64)
}

type reminderScheduler struct {
	runner        jobs.Runner
	tasks         repositories.TaskRepository
	notifications NotificationService
	publisher     EventPublisher
	grace         time.Duration
}

func NewReminderScheduler(
	runner jobs.Runner,
	tasks repositories.TaskRepository,
	notifications NotificationService,
	publisher EventPublisher,
	grace time.Duration,
) ReminderScheduler {
	return &reminderScheduler{
		runner:        runner,
		tasks:         tasks,
		notifications: notifications,
		publisher:     publisher,
		grace:         grace,
	}
}

func reminderJobID(taskID int64, reminderAt time.Time) string {
	return fmt.Sprintf("reminder_task_%d_%d", taskID, reminderAt.Unix())
}

func reminderJobPrefix(taskID int64) string {
	return fmt.Sprintf("reminder_task_%d_", taskID)
}

// Schedule arms a one-shot job at reminderAt. Callers changing a reminder
// instant must Cancel first; the scheduler deduplicates only on the
// composite key, since two distinct instants are legitimately two jobs
// during a transition.
func (s *reminderScheduler) Schedule(taskID int64, userID string, reminderAt time.Time) (string, error) {
	jobID := reminderJobID(taskID, reminderAt)
	err := s.runner.AddOneShotJob(jobID, reminderAt, s.grace, func() {
		s.fire(taskID, userID, reminderAt)
	})
	if err != nil {
		return "", err
	}
	logger.Log.Info().Str("job_id", jobID).Time("run_at", reminderAt).Msg("reminder scheduled")
	return jobID, nil
}

// Cancel sweeps every outstanding job keyed to the task, whichever reminder
// instant each was armed for.
func (s *reminderScheduler) Cancel(taskID int64) {
	prefix := reminderJobPrefix(taskID)
	for _, id := range s.runner.ListJobs() {
		if strings.HasPrefix(id, prefix) {
			s.runner.RemoveJob(id)
			logger.Log.Info().Str("job_id", id).Msg("reminder cancelled")
		}
	}
}

// fire re-fetches the task and only produces effects if it still exists,
// is not completed, and still carries this reminder. That guards against
// completion or deletion racing the job, and against a reminder that was
// rescheduled without this job being swept.
func (s *reminderScheduler) fire(taskID int64, userID string, reminderAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	task, err := s.tasks.FindByID(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTaskNotFound) {
			logger.Log.Info().Int64("task_id", taskID).Msg("task gone, skipping reminder")
			metrics.RemindersFired.WithLabelValues("skipped_missing").Inc()
			return
		}
		logger.Log.Error().Err(err).Int64("task_id", taskID).Msg("reminder job failed to fetch task")
		metrics.RemindersFired.WithLabelValues("error").Inc()
		return
	}
	if task.Completed {
		logger.Log.Info().Int64("task_id", taskID).Msg("task already completed, skipping reminder")
		metrics.RemindersFired.WithLabelValues("skipped_completed").Inc()
		return
	}
	if task.ReminderAt == nil || !task.ReminderAt.Equal(reminderAt) {
		logger.Log.Info().Int64("task_id", taskID).Msg("reminder changed since scheduling, skipping")
		metrics.RemindersFired.WithLabelValues("skipped_stale").Inc()
		return
	}

	message := "Reminder: " + task.Title
	if until := TimeUntilDue(task.DueDate, reminderAt); until != "" && until != "due soon" {
		message += " - " + until + " until due"
	} else if task.DueDate != nil {
		message += " - due soon"
	}

	if _, err := s.notifications.Create(ctx, userID, models.NotificationReminder, "Task Reminder", message, &taskID); err != nil {
		logger.Log.Error().Err(err).Int64("task_id", taskID).Msg("failed to create reminder notification")
		metrics.RemindersFired.WithLabelValues("error").Inc()
		return
	}

	s.publisher.PublishReminderEvent(ctx, taskID, userID, task.Title, task.DueDate, reminderAt)
	metrics.RemindersFired.WithLabelValues("notified").Inc()
	logger.Log.Info().Int64("task_id", taskID).Msg("reminder notification created")
}
