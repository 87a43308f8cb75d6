// file: internal/repositories/collection.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"engagehub/internal/database"

	"go.uber.org/zap"
)

// Collection holds all repository instances for dependency injection
type Collection struct {
	Badge      BadgeRepository
	Award      AwardRepository
	Ledger     LedgerRepository
	Attendance AttendanceRepository
	Submission SubmissionRepository

	db     *database.Manager
	logger *zap.Logger
}

// NewCollection creates the postgres-backed repositories
func NewCollection(db *database.Manager, logger *zap.Logger) (*Collection, error) {
	if db == nil {
		return nil, fmt.Errorf("database manager is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	collection := &Collection{
		Badge:      NewBadgeRepository(db, logger),
		Award:      NewAwardRepository(db, logger),
		Ledger:     NewLedgerRepository(db, logger),
		Attendance: NewAttendanceRepository(db, logger),
		Submission: NewSubmissionRepository(db, logger),
		db:         db,
		logger:     logger,
	}

	logger.Info("Repository collection initialized successfully")
	return collection, nil
}

// HealthCheck reports database status and query metrics
func (c *Collection) HealthCheck(ctx context.Context) map[string]interface{} {
	health := make(map[string]interface{})

	start := time.Now()
	dbHealth := c.db.Health(ctx)
	health["database"] = map[string]interface{}{
		"status":        dbHealth.Status,
		"response_time": dbHealth.ResponseTime.String(),
		"errors":        dbHealth.Errors,
		"checked_in":    time.Since(start).String(),
	}

	metrics := c.db.Metrics()
	health["performance"] = map[string]interface{}{
		"query_count":        metrics.QueryCount,
		"error_count":        metrics.ErrorCount,
		"slow_query_count":   metrics.SlowQueryCount,
		"avg_query_duration": metrics.AvgQueryDuration.String(),
	}

	return health
}

// Healthy is true when the database answers and is not unhealthy
func (c *Collection) Healthy(ctx context.Context) bool {
	status := c.db.Health(ctx).Status
	return status == database.StatusHealthy || status == database.StatusDegraded
}
