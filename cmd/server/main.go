package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"engagehub/internal/config"
	"engagehub/internal/database"
	"engagehub/internal/logging"
	"engagehub/internal/middleware"
	"engagehub/internal/repositories"
	"engagehub/internal/response"
	"engagehub/internal/router"
	"engagehub/internal/scheduler"
	"engagehub/internal/services"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "engagehub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting EngageHub application",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	dbManager, err := database.Open(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			logger.Error("Failed to close database connections", zap.Error(err))
		}
	}()

	repos, err := repositories.NewCollection(dbManager, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	// Initialize services
	serviceCollection, err := services.NewServiceCollection(services.StoresFrom(repos), services.Infrastructure{}, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	serviceCollection.RegisterHealthChecker(services.NewHealthChecker("database", func(ctx context.Context) error {
		if !repos.Healthy(ctx) {
			return errors.New(dbManager.Health(ctx).Status)
		}
		return nil
	}))

	if err := serviceCollection.Start(ctx); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	var bonusScheduler *scheduler.BonusScheduler
	if cfg.Scheduler.Enabled {
		bonusScheduler, err = scheduler.NewBonusScheduler(serviceCollection.Attendance, cfg.Scheduler, logger)
		if err != nil {
			return err
		}
		if err := bonusScheduler.Start(); err != nil {
			return err
		}
	}

	// Response builder
	responseConfig := response.DefaultConfig()
	responseConfig.PrettyJSON = cfg.IsDevelopment()
	responseConfig.MaskInternalErrors = !cfg.IsDevelopment()
	responseBuilder := response.NewBuilder(responseConfig, logger)

	loggingConfig := middleware.DefaultLoggingConfig()
	if cfg.IsProduction() {
		loggingConfig.SlowRequestThreshold = 2 * time.Second
	}

	handler := router.SetupRouter(serviceCollection, responseBuilder, router.Options{
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		Logging:            loggingConfig,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", server.Addr),
			zap.String("environment", cfg.Server.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down application...")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server shutdown completed")
	}

	if bonusScheduler != nil {
		if err := bonusScheduler.Stop(shutdownCtx); err != nil {
			logger.Error("Scheduler did not stop cleanly", zap.Error(err))
		}
	}

	// Drains queued completion events before the database closes
	eventsCtx, cancelEvents := context.WithTimeout(context.Background(), cfg.Events.ShutdownTimeout)
	defer cancelEvents()
	if err := serviceCollection.Shutdown(eventsCtx); err != nil {
		logger.Error("Service shutdown incomplete", zap.Error(err))
	}

	finalMetrics := dbManager.Metrics()
	logger.Info("Final database metrics",
		zap.Int64("total_queries", finalMetrics.QueryCount),
		zap.Int64("total_errors", finalMetrics.ErrorCount),
		zap.Int64("slow_queries", finalMetrics.SlowQueryCount),
		zap.Duration("avg_query_duration", finalMetrics.AvgQueryDuration),
	)

	logger.Info("Application shutdown completed")
	return nil
}
