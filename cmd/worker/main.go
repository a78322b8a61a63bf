package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/littlefarms/taskboard-api/config"
	"github.com/littlefarms/taskboard-api/internal/email"
	"github.com/littlefarms/taskboard-api/internal/repository/postgres"
	"github.com/littlefarms/taskboard-api/internal/service/deadline"
	"github.com/littlefarms/taskboard-api/internal/service/delivery"
	"github.com/littlefarms/taskboard-api/internal/service/recipient"
	"github.com/littlefarms/taskboard-api/pkg/logger"
	"github.com/littlefarms/taskboard-api/pkg/messaging/redis"
	"github.com/littlefarms/taskboard-api/pkg/metrics"
)

// The worker runs the deadline-reminder scan on a fixed interval and
// serves its prometheus metrics on :9090.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logger.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})
	log.Logger = *appLogger.Zerolog()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	m := metrics.NewMetrics("taskboard_worker")

	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)
	taskRepo := postgres.NewTaskRepository(base)
	userRepo := postgres.NewUserRepository(base)

	resolver := recipient.NewResolver(userRepo)
	deliveryRouter := delivery.NewRouter(emailSvc, delivery.NewBrokerTransport(broker), cfg.Frontend.BaseURL, m)
	reminder := deadline.NewService(taskRepo, notificationRepo, resolver, deliveryRouter, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", nil); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	go reminder.Run(ctx, cfg.Reminder.Interval)
	log.Info().Dur("interval", cfg.Reminder.Interval).Msg("deadline reminder worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker...")
	cancel()
}
