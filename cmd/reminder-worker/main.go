package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"todohub/internal/broker"
	"todohub/internal/config"
	"todohub/internal/logger"
	"todohub/internal/services"
	"todohub/internal/worker"
)

func main() {
	cfg := config.LoadConfig()

	redisBroker := broker.NewRedisBroker(cfg.Events.BrokerAddr)
	defer func() {
		if err := redisBroker.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("failed to close broker connection")
		}
	}()

	mailer := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)

	// User ids are mailboxes until the auth collaborator exposes a profile
	// lookup.
	resolveEmail := func(userID string) (string, bool) {
		return userID, userID != ""
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w := worker.NewReminderWorker(redisBroker, mailer, cfg.Events.ReminderTopic, resolveEmail)
	w.Run(ctx)
}
