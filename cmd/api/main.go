package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/littlefarms/taskboard-api/config"
	"github.com/littlefarms/taskboard-api/internal/email"
	healthHandler "github.com/littlefarms/taskboard-api/internal/handler/health"
	notificationHandler "github.com/littlefarms/taskboard-api/internal/handler/notification"
	taskHandler "github.com/littlefarms/taskboard-api/internal/handler/task"
	"github.com/littlefarms/taskboard-api/internal/middleware"
	"github.com/littlefarms/taskboard-api/internal/repository/postgres"
	"github.com/littlefarms/taskboard-api/internal/router"
	"github.com/littlefarms/taskboard-api/internal/service/delivery"
	notificationService "github.com/littlefarms/taskboard-api/internal/service/notification"
	"github.com/littlefarms/taskboard-api/internal/service/recipient"
	taskService "github.com/littlefarms/taskboard-api/internal/service/task"
	"github.com/littlefarms/taskboard-api/pkg/auth"
	"github.com/littlefarms/taskboard-api/pkg/logger"
	"github.com/littlefarms/taskboard-api/pkg/messaging/redis"
	"github.com/littlefarms/taskboard-api/pkg/metrics"
)

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

	// Repositories
	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)
	taskRepo := postgres.NewTaskRepository(base)
	userRepo := postgres.NewUserRepository(base)

	// Realtime push transport (Redis pub/sub)
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

	m := metrics.NewMetrics("taskboard")

	// Services
	resolver := recipient.NewResolver(userRepo)
	deliveryRouter := delivery.NewRouter(emailSvc, delivery.NewBrokerTransport(broker), cfg.Frontend.BaseURL, m)
	notificationSvc := notificationService.NewService(notificationRepo, taskRepo, resolver, deliveryRouter, emailSvc, m)
	taskSvc := taskService.NewService(taskRepo)

	// Middleware and handlers
	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	notificationH := notificationHandler.NewHandler(notificationSvc, authMiddleware)
	taskH := taskHandler.NewHandler(taskSvc)
	healthH := healthHandler.NewHandler(db)

	r := router.NewRouter(notificationH, taskH, healthH, router.Config{
		RateLimit:  cfg.RateLimit.RequestsPerSecond,
		RateBurst:  cfg.RateLimit.Burst,
		CORSConfig: middleware.DefaultCORSConfig(),
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
