package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todohub/internal/models"
	"todohub/internal/repositories"
)

type taskServiceFixture struct {
	repo          *fakeTaskRepo
	notifications *fakeNotifications
	publisher     *fakePublisher
	scheduler     *fakeScheduler
	service       TaskService
}

func newTaskServiceFixture() *taskServiceFixture {
	f := &taskServiceFixture{
		repo:          newFakeTaskRepo(),
		notifications: &fakeNotifications{},
		publisher:     &fakePublisher{},
		scheduler:     &fakeScheduler{},
	}
	f.service = NewTaskService(f.repo, NewRecurrenceService(), f.notifications, f.publisher, f.scheduler)
	return f
}

func TestCreateDefaultsAndPublishes(t *testing.T) {
	f := newTaskServiceFixture()

	created, err := f.service.Create(context.Background(), &models.Task{
		UserID: "alice@example.com",
		Title:  "Buy milk",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityMedium, created.Priority)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	events := f.publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, "created", events[0].operation)
	assert.Empty(t, f.scheduler.scheduled, "no reminder set, nothing to arm")
}

func TestCreateArmsReminder(t *testing.T) {
	f := newTaskServiceFixture()

	reminderAt := time.Now().UTC().Add(time.Hour)
	created, err := f.service.Create(context.Background(), &models.Task{
		UserID:     "alice@example.com",
		Title:      "Buy milk",
		ReminderAt: &reminderAt,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{created.ID}, f.scheduler.scheduled)
}

func TestCreateValidation(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	due := time.Now().UTC().Add(time.Hour)
	after := due.Add(time.Hour)
	_, err := f.service.Create(ctx, &models.Task{
		UserID: "alice@example.com", Title: "x", DueDate: &due, ReminderAt: &after,
	})
	assert.ErrorIs(t, err, ErrReminderAfterDue)

	_, err = f.service.Create(ctx, &models.Task{
		UserID: "alice@example.com", Title: "x", DueDate: &due, ReminderAt: &due,
	})
	assert.ErrorIs(t, err, ErrReminderAfterDue, "reminder equal to due date is invalid")

	_, err = f.service.Create(ctx, &models.Task{
		UserID: "alice@example.com", Title: "x", RecurrenceRule: "FREQ=NOPE",
	})
	assert.ErrorIs(t, err, ErrMalformedRule)

	_, err = f.service.Create(ctx, &models.Task{
		UserID: "alice@example.com", Title: "x", DueDate: &due,
		RecurrenceRule: "FREQ=DAILY;UNTIL=20200101T000000Z",
	})
	assert.ErrorIs(t, err, ErrNoFutureOccurrence)

	assert.Empty(t, f.publisher.all(), "validation failures publish nothing")
}

func TestUpdateReArmsReminder(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	reminderAt := time.Now().UTC().Add(time.Hour)
	created, err := f.service.Create(ctx, &models.Task{
		UserID: "alice@example.com", Title: "Buy milk", ReminderAt: &reminderAt,
	})
	require.NoError(t, err)

	moved := reminderAt.Add(time.Hour)
	created.ReminderAt = &moved
	_, err = f.service.Update(ctx, created)
	require.NoError(t, err)

	assert.Equal(t, []int64{created.ID}, f.scheduler.cancelled)
	assert.Equal(t, []int64{created.ID, created.ID}, f.scheduler.scheduled)

	events := f.publisher.all()
	require.Len(t, events, 2)
	assert.Equal(t, "updated", events[1].operation)
}

func TestDeleteCancelsAndPublishes(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	created, err := f.service.Create(ctx, &models.Task{UserID: "alice@example.com", Title: "Buy milk"})
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, created.ID, "alice@example.com"))

	_, err = f.repo.FindByID(ctx, created.ID, "alice@example.com")
	assert.ErrorIs(t, err, repositories.ErrTaskNotFound)
	assert.Equal(t, []int64{created.ID}, f.scheduler.cancelled)

	events := f.publisher.all()
	require.Len(t, events, 2)
	assert.Equal(t, "deleted", events[1].operation)
}

func TestDeleteUnknownTask(t *testing.T) {
	f := newTaskServiceFixture()
	err := f.service.Delete(context.Background(), 99, "alice@example.com")
	assert.ErrorIs(t, err, repositories.ErrTaskNotFound)
}

func TestCompleteNonRecurring(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	created, err := f.service.Create(ctx, &models.Task{UserID: "alice@example.com", Title: "Buy milk"})
	require.NoError(t, err)

	done, err := f.service.Complete(ctx, created.ID, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, done.Completed)

	stored, err := f.repo.FindByID(ctx, created.ID, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, stored.Completed)

	notifications := f.notifications.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTaskCompleted, notifications[0].Type)
	assert.Equal(t, "Great job! You finished Buy milk", notifications[0].Message)

	events := f.publisher.all()
	require.Len(t, events, 2) // created + completed
	assert.Equal(t, "completed", events[1].operation)
	assert.Len(t, f.repo.tasks, 1, "no next instance for a one-off task")
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	created, err := f.service.Create(ctx, &models.Task{UserID: "alice@example.com", Title: "Buy milk"})
	require.NoError(t, err)

	_, err = f.service.Complete(ctx, created.ID, "alice@example.com")
	require.NoError(t, err)
	before := len(f.publisher.all())

	again, err := f.service.Complete(ctx, created.ID, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, again.Completed)
	assert.Len(t, f.publisher.all(), before, "repeat completion publishes nothing")
	assert.Len(t, f.notifications.all(), 1)
}

func TestCompleteRecurringSpawnsNextInstance(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	due := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	created, err := f.service.Create(ctx, &models.Task{
		UserID:         "alice@example.com",
		Title:          "Water the plants",
		DueDate:        &due,
		RecurrenceRule: "FREQ=DAILY",
		Tags:           []string{"home"},
	})
	require.NoError(t, err)

	done, err := f.service.Complete(ctx, created.ID, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, done.Completed)

	require.Len(t, f.repo.tasks, 2)
	var next models.Task
	for id, task := range f.repo.tasks {
		if id != created.ID {
			next = task
		}
	}
	assert.False(t, next.Completed)
	assert.Equal(t, "Water the plants", next.Title)
	assert.Equal(t, "FREQ=DAILY", next.RecurrenceRule)
	assert.Equal(t, []string{"home"}, next.Tags)
	require.NotNil(t, next.ParentTaskID)
	assert.Equal(t, created.ID, *next.ParentTaskID)
	require.NotNil(t, next.DueDate)
	assert.Equal(t, due.AddDate(0, 0, 1), *next.DueDate)
	assert.Nil(t, next.ReminderAt)

	// completed for the old instance, then created for the new one.
	events := f.publisher.all()
	require.Len(t, events, 3)
	assert.Equal(t, "completed", events[1].operation)
	assert.Equal(t, created.ID, events[1].taskID)
	assert.Equal(t, "created", events[2].operation)
	assert.Equal(t, next.ID, events[2].taskID)
}

func TestCompleteEndedSeriesSpawnsNothing(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	due := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	task := &models.Task{
		ID:             1,
		UserID:         "alice@example.com",
		Title:          "Final standup",
		DueDate:        &due,
		RecurrenceRule: "FREQ=DAILY;UNTIL=20250115T100000Z",
	}
	f.repo.tasks[1] = *task
	f.repo.nextID = 1

	done, err := f.service.Complete(ctx, 1, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Len(t, f.repo.tasks, 1)

	events := f.publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, "completed", events[0].operation)
}

func TestCompleteSurvivesNotificationFailure(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	created, err := f.service.Create(ctx, &models.Task{UserID: "alice@example.com", Title: "Buy milk"})
	require.NoError(t, err)

	f.notifications.failCreate = errors.New("notification store down")

	done, err := f.service.Complete(ctx, created.ID, "alice@example.com")
	require.NoError(t, err, "completion must not fail on notification trouble")
	assert.True(t, done.Completed)

	events := f.publisher.all()
	assert.Equal(t, "completed", events[len(events)-1].operation)
}

func TestCompleteFailsWhenPersistenceFails(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	created, err := f.service.Create(ctx, &models.Task{UserID: "alice@example.com", Title: "Buy milk"})
	require.NoError(t, err)

	f.repo.failUpdate = errors.New("db down")
	_, err = f.service.Complete(ctx, created.ID, "alice@example.com")
	assert.Error(t, err)
	assert.Empty(t, f.notifications.all())
}

func TestReopen(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	created, err := f.service.Create(ctx, &models.Task{UserID: "alice@example.com", Title: "Buy milk"})
	require.NoError(t, err)
	_, err = f.service.Complete(ctx, created.ID, "alice@example.com")
	require.NoError(t, err)

	reopened, err := f.service.Reopen(ctx, created.ID, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, reopened.Completed)

	events := f.publisher.all()
	assert.Equal(t, "updated", events[len(events)-1].operation)
}

func TestDueSoonSweep(t *testing.T) {
	f := newTaskServiceFixture()
	ctx := context.Background()

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour).Add(10 * time.Hour)
	nextWeek := time.Now().UTC().AddDate(0, 0, 7)

	_, err := f.service.Create(ctx, &models.Task{UserID: "alice@example.com", Title: "Dentist", DueDate: &tomorrow})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, &models.Task{UserID: "alice@example.com", Title: "Taxes", DueDate: &nextWeek})
	require.NoError(t, err)

	require.NoError(t, f.service.DueSoonSweep(ctx))

	notifications := f.notifications.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationDueDateReminder, notifications[0].Type)
	assert.Equal(t, "Dentist is due tomorrow", notifications[0].Message)

	// Sweeping again does not stack duplicates.
	require.NoError(t, f.service.DueSoonSweep(ctx))
	assert.Len(t, f.notifications.all(), 1)
}
