package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"engagehub/internal/config"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Open connects to the database, waits until it reports healthy and applies migrations
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var manager *Manager
	connect := func() error {
		m, err := NewManager(cfg, logger)
		if err != nil {
			return err
		}
		manager = m
		return nil
	}

	if err := backoff.RetryNotify(connect, startupBackOff(ctx, cfg.HealthCheckTimeout), func(err error, wait time.Duration) {
		logger.Warn("Database not reachable yet, retrying", zap.Error(err), zap.Duration("retry_in", wait))
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := waitForHealth(ctx, manager, cfg.HealthCheckTimeout, logger); err != nil {
		manager.Close()
		return nil, fmt.Errorf("database failed to become healthy: %w", err)
	}

	if cfg.RunMigrations {
		migrationsPath := determineMigrationsPath(cfg.MigrationsPath)
		migrate := func() error { return manager.Migrate(migrationsPath) }

		err := backoff.RetryNotify(migrate, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx), func(err error, wait time.Duration) {
			logger.Warn("Migration attempt failed, retrying", zap.Error(err), zap.Duration("retry_in", wait))
		})
		if err != nil {
			manager.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	stats := manager.Stats()
	logger.Info("Database initialized successfully",
		zap.Int("max_open_connections", stats.MaxOpenConnections),
		zap.Int("open_connections", stats.OpenConnections),
	)

	return manager, nil
}

func waitForHealth(ctx context.Context, manager *Manager, timeout time.Duration, logger *zap.Logger) error {
	logger.Info("Waiting for database to become healthy")

	check := func() error {
		status := manager.Health(ctx)
		if status.Status == StatusHealthy || status.Status == StatusDegraded {
			logger.Info("Database is healthy", zap.Duration("response_time", status.ResponseTime))
			return nil
		}
		return fmt.Errorf("database status %s: %v", status.Status, status.Errors)
	}

	return backoff.Retry(check, startupBackOff(ctx, timeout))
}

func startupBackOff(ctx context.Context, timeout time.Duration) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second
	if timeout > 0 {
		b.MaxElapsedTime = timeout
	}
	return backoff.WithContext(b, ctx)
}

func determineMigrationsPath(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	paths := []string{
		"./internal/database/migrations",
		"./migrations",
		"../migrations",
		"../../internal/database/migrations",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "./internal/database/migrations"
}
