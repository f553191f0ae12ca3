package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicops/scheduling-service/internal/api/router"
	"github.com/clinicops/scheduling-service/internal/booking"
	appconfig "github.com/clinicops/scheduling-service/internal/config"
	"github.com/clinicops/scheduling-service/internal/credentials"
	"github.com/clinicops/scheduling-service/internal/googlecal"
	"github.com/clinicops/scheduling-service/internal/http/handlers"
	"github.com/clinicops/scheduling-service/internal/observability/metrics"
	"github.com/clinicops/scheduling-service/internal/proxy"
	"github.com/clinicops/scheduling-service/internal/relations"
	"github.com/clinicops/scheduling-service/internal/schedule"
	"github.com/clinicops/scheduling-service/internal/scheduler"
	"github.com/clinicops/scheduling-service/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling-service API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	displayTZ, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		logger.Error("invalid display timezone", "timezone", cfg.DisplayTimezone, "error", err)
		os.Exit(1)
	}

	schedulingMetrics := metrics.NewSchedulingMetrics(nil)

	proxyClient := proxy.NewClient(
		cfg.ProxyBaseURL,
		proxy.StaticToken(cfg.ProxyAPIToken),
		cfg.ProxyTimeout,
		logger,
	)

	googleClient := googlecal.NewClient(googlecal.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
	}, logger)

	scheduleStore := schedule.NewStore(redisClient)
	credStore := credentials.NewPostgresStore(pool, logger)
	recordRepo := scheduler.NewRepository(pool)
	relationGraph := relations.NewPostgresGraph(pool, logger)

	provisioner := scheduler.NewProvisioner(
		googleClient,
		credStore,
		proxyClient,
		recordRepo,
		scheduleStore,
		relationGraph,
		displayTZ,
		logger,
	)

	recorder := booking.NewPostgresRecorder(pool, logger)
	bookingOrchestrator := booking.NewOrchestrator(proxyClient, recorder, logger)

	schedulerHandler := handlers.NewSchedulerHandler(handlers.SchedulerHandlerConfig{
		Provisioner:     provisioner,
		FreeTime:        proxyClient,
		Metrics:         schedulingMetrics,
		DisplayTZ:       displayTZ,
		DefaultDuration: cfg.DefaultSlotDurationMins,
		Logger:          logger,
	})
	bookingHandler := handlers.NewBookingHandler(handlers.BookingHandlerConfig{
		Booker:  bookingOrchestrator,
		Metrics: schedulingMetrics,
		Logger:  logger,
	})

	r := router.New(&router.Config{
		Logger:           logger,
		SchedulerHandler: schedulerHandler,
		BookingHandler:   bookingHandler,
		AdminAuthSecret:  cfg.AdminJWTSecret,
		MetricsHandler:   promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
