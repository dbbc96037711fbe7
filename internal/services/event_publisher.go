// internal/services/event_publisher.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"todohub/internal/broker"
	"todohub/internal/config"
	"todohub/internal/events"
	"todohub/internal/logger"
	"todohub/internal/metrics"
	"todohub/internal/models"
)

// PublishOutcome is the explicit result of a publish attempt. Broker
// failure is an expected condition here, not an error channel: the caller
// always gets one of the three outcomes and never a panic or error.
type PublishOutcome int

const (
	// Delivered means the broker accepted the envelope.
	Delivered PublishOutcome = iota
	// Cached means delivery failed and the envelope sits in the
	// degraded-mode cache awaiting replay.
	Cached
	// Rejected means the input could not form a valid event. Terminal for
	// that event only; retrying a malformed event can never succeed.
	Rejected
)

func (o PublishOutcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Cached:
		return "cached"
	default:
		return "rejected"
	}
}

// CachedEvent is the serialized form an envelope takes in the degraded-mode
// cache. Plain bytes, not the live envelope, so replay re-sends exactly
// what would have gone over the wire.
type CachedEvent struct {
	Topic    string          `json:"topic"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	CachedAt time.Time       `json:"cached_at"`
}

// EventPublisher delivers lifecycle envelopes to the broker, caching them
// locally when the broker is unreachable. Degraded mode is defined as
// "cache non-empty"; there is no separate flag to fall out of sync.
type EventPublisher interface {
	PublishTaskEvent(ctx context.Context, operation string, task *models.Task) PublishOutcome
	PublishReminderEvent(ctx context.Context, taskID int64, userID, title string, dueAt *time.Time, reminderAt time.Time) PublishOutcome
	CacheSize() int
	CachedEvents() []CachedEvent
	ClearCache()
	IsDegraded() bool
	ReplayCache(ctx context.Context) (replayed, remaining int)
}

type eventPublisher struct {
	broker  broker.Broker
	builder *events.Builder
	cfg     config.EventsConfig

	mu    sync.Mutex
	cache []CachedEvent
}

func NewEventPublisher(b broker.Broker, builder *events.Builder, cfg config.EventsConfig) EventPublisher {
	return &eventPublisher{broker: b, builder: builder, cfg: cfg}
}

// PublishTaskEvent emits a todo.task.<operation> event carrying a snapshot
// of the task at emission time.
func (p *eventPublisher) PublishTaskEvent(ctx context.Context, operation string, task *models.Task) PublishOutcome {
	if task == nil || operation == "" || task.UserID == "" {
		logger.Log.Error().Str("operation", operation).Msg("rejecting task event with incomplete input")
		metrics.EventsPublished.WithLabelValues(p.cfg.TaskTopic, Rejected.String()).Inc()
		return Rejected
	}

	data := events.TaskEventData{
		TaskID:         task.ID,
		UserID:         task.UserID,
		Operation:      operation,
		Title:          task.Title,
		Description:    task.Description,
		Completed:      task.Completed,
		Priority:       string(task.Priority),
		DueDate:        task.DueDate,
		ReminderAt:     task.ReminderAt,
		Tags:           task.Tags,
		RecurrenceRule: task.RecurrenceRule,
		ParentTaskID:   task.ParentTaskID,
		UpdatedAt:      &task.UpdatedAt,
	}
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Log.Error().Err(err).Int64("task_id", task.ID).Msg("failed to marshal task event payload")
		metrics.EventsPublished.WithLabelValues(p.cfg.TaskTopic, Rejected.String()).Inc()
		return Rejected
	}

	eventType := "todo.task." + operation
	return p.deliver(ctx, p.cfg.TaskTopic, p.builder.Build(eventType, payload))
}

// PublishReminderEvent emits a todo.reminder.triggered event, computing a
// human "time until due" description from dueAt - reminderAt.
func (p *eventPublisher) PublishReminderEvent(ctx context.Context, taskID int64, userID, title string, dueAt *time.Time, reminderAt time.Time) PublishOutcome {
	if userID == "" {
		logger.Log.Error().Int64("task_id", taskID).Msg("rejecting reminder event without user id")
		metrics.EventsPublished.WithLabelValues(p.cfg.ReminderTopic, Rejected.String()).Inc()
		return Rejected
	}

	data := events.ReminderEventData{
		TaskID:       taskID,
		UserID:       userID,
		Title:        title,
		DueDate:      dueAt,
		ReminderAt:   reminderAt,
		TimeUntilDue: TimeUntilDue(dueAt, reminderAt),
	}
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Log.Error().Err(err).Int64("task_id", taskID).Msg("failed to marshal reminder event payload")
		metrics.EventsPublished.WithLabelValues(p.cfg.ReminderTopic, Rejected.String()).Inc()
		return Rejected
	}

	return p.deliver(ctx, p.cfg.ReminderTopic, p.builder.Build(events.TypeReminderTriggered, payload))
}

// deliver attempts one broker publish under a hard timeout. Any failure,
// timeout included, caches the envelope and reports Cached; broker trouble
// never propagates to the caller.
func (p *eventPublisher) deliver(ctx context.Context, topic string, env events.Envelope) PublishOutcome {
	raw, err := json.Marshal(env)
	if err != nil {
		logger.Log.Error().Err(err).Str("type", env.Type).Msg("failed to marshal envelope")
		metrics.EventsPublished.WithLabelValues(topic, Rejected.String()).Inc()
		return Rejected
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout())
	defer cancel()

	start := time.Now()
	err = p.broker.Publish(pubCtx, topic, raw)
	metrics.PublishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Log.Warn().Err(err).Str("topic", topic).Str("type", env.Type).
			Msg("broker unreachable, caching event (degraded mode)")
		p.cacheEvent(CachedEvent{Topic: topic, Type: env.Type, Data: raw, CachedAt: time.Now().UTC()})
		metrics.EventsPublished.WithLabelValues(topic, Cached.String()).Inc()
		return Cached
	}

	logger.Log.Info().Str("topic", topic).Str("type", env.Type).Str("id", env.ID).Msg("event published")
	metrics.EventsPublished.WithLabelValues(topic, Delivered.String()).Inc()
	return Delivered
}

// cacheEvent appends under the cache mutex and evicts the single oldest
// entry when capacity would be exceeded. Append and evict happen inside
// one critical section so concurrent publishes can neither corrupt order
// nor overshoot the bound.
func (p *eventPublisher) cacheEvent(ev CachedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cache = append(p.cache, ev)
	if len(p.cache) > p.cfg.CacheCapacity {
		p.cache = p.cache[1:]
	}
	metrics.CacheSize.Set(float64(len(p.cache)))
	logger.Log.Warn().Str("type", ev.Type).Int("cache_size", len(p.cache)).Msg("event cached")
}

func (p *eventPublisher) CacheSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// CachedEvents returns a copy of the cache in arrival order.
func (p *eventPublisher) CachedEvents() []CachedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CachedEvent, len(p.cache))
	copy(out, p.cache)
	return out
}

func (p *eventPublisher) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = nil
	metrics.CacheSize.Set(0)
	logger.Log.Info().Msg("event cache cleared")
}

// IsDegraded is exactly "cache non-empty".
func (p *eventPublisher) IsDegraded() bool {
	return p.CacheSize() > 0
}

// ReplayCache drains the cache back to the broker. Entries that fail again
// are re-cached at the tail, so replay may reorder relative to live events
// but never loses an envelope that the broker has not accepted.
func (p *eventPublisher) ReplayCache(ctx context.Context) (replayed, remaining int) {
	p.mu.Lock()
	pending := p.cache
	p.cache = nil
	metrics.CacheSize.Set(0)
	p.mu.Unlock()

	for _, ev := range pending {
		pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout())
		err := p.broker.Publish(pubCtx, ev.Topic, ev.Data)
		cancel()
		if err != nil {
			p.cacheEvent(ev)
			continue
		}
		replayed++
	}

	remaining = p.CacheSize()
	logger.Log.Info().Int("replayed", replayed).Int("remaining", remaining).Msg("event cache replay finished")
	return replayed, remaining
}

// TimeUntilDue renders the gap between a reminder and its due date: whole
// days if at least a day, else hours, else minutes, else "due soon".
func TimeUntilDue(dueAt *time.Time, reminderAt time.Time) string {
	if dueAt == nil {
		return ""
	}
	delta := dueAt.Sub(reminderAt)
	switch {
	case delta >= 24*time.Hour:
		return plural(int(delta.Hours())/24, "day")
	case delta >= time.Hour:
		return plural(int(delta.Hours()), "hour")
	case delta >= time.Minute:
		return plural(int(delta.Minutes()), "minute")
	default:
		return "due soon"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
