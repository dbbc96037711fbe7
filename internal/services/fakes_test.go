package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"todohub/internal/models"
	"todohub/internal/repositories"
)

// fakeTaskRepo is an in-memory TaskRepository for service tests.
type fakeTaskRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]models.Task

	failStore  error
	failUpdate error
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[int64]models.Task{}}
}

func (r *fakeTaskRepo) Store(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failStore != nil {
		return r.failStore
	}
	r.nextID++
	task.ID = r.nextID
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepo) FindByID(_ context.Context, id int64, userID string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, repositories.ErrTaskNotFound
	}
	out := t
	return &out, nil
}

func (r *fakeTaskRepo) FindAll(_ context.Context, filter models.TaskFilter) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if t.UserID == filter.UserID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	if _, ok := r.tasks[task.ID]; !ok {
		return repositories.ErrTaskNotFound
	}
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, id int64, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return repositories.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) ListDueBetween(_ context.Context, start, end time.Time) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if t.Completed || t.DueDate == nil {
			continue
		}
		if !t.DueDate.Before(start) && t.DueDate.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeNotifications records notification calls without a database.
type fakeNotifications struct {
	mu         sync.Mutex
	created    []models.Notification
	failCreate error
}

func (f *fakeNotifications) Create(_ context.Context, userID string, nType models.NotificationType, title, message string, taskID *int64) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	n := models.Notification{
		ID:      int64(len(f.created) + 1),
		UserID:  userID,
		TaskID:  taskID,
		Type:    nType,
		Title:   title,
		Message: message,
	}
	f.created = append(f.created, n)
	return &n, nil
}

func (f *fakeNotifications) CreateIfAbsent(ctx context.Context, userID string, nType models.NotificationType, title, message string, taskID int64, _ time.Time) error {
	f.mu.Lock()
	for _, n := range f.created {
		if n.TaskID != nil && *n.TaskID == taskID && n.Type == nType {
			f.mu.Unlock()
			return nil
		}
	}
	f.mu.Unlock()
	_, err := f.Create(ctx, userID, nType, title, message, &taskID)
	return err
}

func (f *fakeNotifications) GetAll(context.Context, string, bool) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.created...), nil
}

func (f *fakeNotifications) UnreadCount(context.Context, string) (int, error) { return 0, nil }
func (f *fakeNotifications) MarkRead(context.Context, int64, string) error   { return nil }
func (f *fakeNotifications) MarkAllRead(context.Context, string) error       { return nil }

func (f *fakeNotifications) all() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.created...)
}

// publishedEvent is one recorded publisher call.
type publishedEvent struct {
	kind      string // "task" or "reminder"
	operation string
	taskID    int64
}

// fakePublisher records publish calls and always reports Delivered.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) PublishTaskEvent(_ context.Context, operation string, task *models.Task) PublishOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{kind: "task", operation: operation, taskID: task.ID})
	return Delivered
}

func (f *fakePublisher) PublishReminderEvent(_ context.Context, taskID int64, _, _ string, _ *time.Time, _ time.Time) PublishOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{kind: "reminder", taskID: taskID})
	return Delivered
}

func (f *fakePublisher) CacheSize() int                               { return 0 }
func (f *fakePublisher) CachedEvents() []CachedEvent                  { return nil }
func (f *fakePublisher) ClearCache()                                  {}
func (f *fakePublisher) IsDegraded() bool                             { return false }
func (f *fakePublisher) ReplayCache(context.Context) (int, int)       { return 0, 0 }

func (f *fakePublisher) all() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.events...)
}

// fakeScheduler records schedule and cancel calls.
type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []int64
	cancelled []int64
	failWith  error
}

func (f *fakeScheduler) Schedule(taskID int64, _ string, _ time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.scheduled = append(f.scheduled, taskID)
	return "job", nil
}

func (f *fakeScheduler) Cancel(taskID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, taskID)
}

// fakeRunner captures one-shot jobs so tests can fire them synchronously.
type fakeRunner struct {
	mu   sync.Mutex
	jobs map[string]func()
	errs map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{jobs: map[string]func(){}, errs: map[string]error{}}
}

func (r *fakeRunner) AddOneShotJob(id string, _ time.Time, _ time.Duration, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[id]; ok {
		return err
	}
	r.jobs[id] = fn
	return nil
}

func (r *fakeRunner) ListJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	return ids
}

func (r *fakeRunner) RemoveJob(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// fire runs a registered job like the timer would, removing it first.
func (r *fakeRunner) fire(id string) error {
	r.mu.Lock()
	fn, ok := r.jobs[id]
	delete(r.jobs, id)
	r.mu.Unlock()
	if !ok {
		return errors.New("no such job: " + id)
	}
	fn()
	return nil
}
