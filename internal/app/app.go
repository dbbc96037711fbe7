package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"todohub/internal/broker"
	"todohub/internal/config"
	"todohub/internal/events"
	"todohub/internal/handlers"
	"todohub/internal/jobs"
	"todohub/internal/logger"
	"todohub/internal/repositories"
	"todohub/internal/routes"
	"todohub/internal/services"
)

func Run() {
	cfg := config.LoadConfig()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("failed to close database")
		}
	}()

	// === Repos ===
	taskRepo := repositories.NewTaskRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// === Broker and events ===
	redisBroker := broker.NewRedisBroker(cfg.Events.BrokerAddr)
	defer func() {
		if err := redisBroker.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("failed to close broker connection")
		}
	}()
	builder := events.NewBuilder(cfg.Events.Source, nil)
	publisher := services.NewEventPublisher(redisBroker, builder, cfg.Events)

	// === Services ===
	recurrenceService := services.NewRecurrenceService()
	notificationService := services.NewNotificationService(notificationRepo)

	runner := jobs.NewTimerRunner()
	reminderScheduler := services.NewReminderScheduler(
		runner,
		taskRepo,
		notificationService,
		publisher,
		cfg.Reminders.MisfireGrace(),
	)

	taskService := services.NewTaskService(
		taskRepo,
		recurrenceService,
		notificationService,
		publisher,
		reminderScheduler,
	)

	// === Daily due-soon sweep ===
	sweeper := cron.New()
	_, err = sweeper.AddFunc(cfg.Reminders.DueSweepSpec, func() {
		if err := taskService.DueSoonSweep(context.Background()); err != nil {
			logger.Log.Error().Err(err).Msg("due-soon sweep failed")
		}
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Str("spec", cfg.Reminders.DueSweepSpec).Msg("invalid sweep cron spec")
	}
	sweeper.Start()
	defer sweeper.Stop()

	// === Handlers ===
	taskHandler := handlers.NewTaskHandler(taskService, recurrenceService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	eventsHandler := handlers.NewEventsHandler(publisher)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	routes.SetupRoutes(
		router,
		[]byte(cfg.Auth.JWTSecret),
		taskHandler,
		notificationHandler,
		eventsHandler,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Log.Info().Str("addr", listenAddr).Msg("server listening")
	if err := router.Run(listenAddr); err != nil {
		logger.Log.Fatal().Err(err).Msg("server stopped")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
