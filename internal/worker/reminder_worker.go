// Package worker runs the downstream reminder consumer: it drains the
// reminders topic and turns each event into an email.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"todohub/internal/broker"
	"todohub/internal/events"
	"todohub/internal/logger"
	"todohub/internal/services"
)

// pollTimeout bounds each blocking pop so shutdown is responsive.
const pollTimeout = 5 * time.Second

type ReminderWorker struct {
	consumer broker.Consumer
	mailer   services.EmailService
	topic    string
	// resolveEmail maps the opaque user id to a mailbox. Identity lives in
	// the external auth system, so the mapping is injected.
	resolveEmail func(userID string) (string, bool)
}

func NewReminderWorker(consumer broker.Consumer, mailer services.EmailService, topic string, resolveEmail func(string) (string, bool)) *ReminderWorker {
	return &ReminderWorker{
		consumer:     consumer,
		mailer:       mailer,
		topic:        topic,
		resolveEmail: resolveEmail,
	}
}

// Run consumes until the context is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) {
	logger.Log.Info().Str("topic", w.topic).Msg("reminder worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info().Msg("reminder worker stopping")
			return
		default:
		}

		payload, err := w.consumer.Consume(ctx, w.topic, pollTimeout)
		if err != nil {
			if errors.Is(err, broker.ErrNoMessage) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Log.Error().Err(err).Msg("consume failed, backing off")
			time.Sleep(time.Second)
			continue
		}

		w.handle(payload)
	}
}

func (w *ReminderWorker) handle(payload []byte) {
	var env events.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logger.Log.Error().Err(err).Msg("dropping undecodable envelope")
		return
	}
	if env.Type != events.TypeReminderTriggered {
		logger.Log.Warn().Str("type", env.Type).Msg("ignoring unexpected event type")
		return
	}

	var reminder events.ReminderEventData
	if err := json.Unmarshal(env.Data, &reminder); err != nil {
		logger.Log.Error().Err(err).Str("id", env.ID).Msg("dropping envelope with bad reminder data")
		return
	}

	addr, ok := w.resolveEmail(reminder.UserID)
	if !ok {
		logger.Log.Warn().Str("user_id", reminder.UserID).Int64("task_id", reminder.TaskID).
			Msg("no mailbox for user, skipping reminder email")
		return
	}

	if err := w.mailer.SendReminderEmail(addr, reminder); err != nil {
		logger.Log.Error().Err(err).Int64("task_id", reminder.TaskID).Msg("failed to send reminder email")
		return
	}
	logger.Log.Info().Int64("task_id", reminder.TaskID).Str("id", env.ID).Msg("reminder email sent")
}
