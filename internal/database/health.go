package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusShutdown  = "shutdown"
)

// HealthStatus represents the current health status of the database
type HealthStatus struct {
	Status          string                 `json:"status"`
	Timestamp       time.Time              `json:"timestamp"`
	ResponseTime    time.Duration          `json:"response_time"`
	ConnectionCount int                    `json:"connection_count"`
	Errors          []string               `json:"errors,omitempty"`
	Details         map[string]interface{} `json:"details"`
}

// HealthChecker pings the database and inspects pool pressure
type HealthChecker struct {
	manager *Manager
	logger  *zap.Logger

	mu         sync.RWMutex
	isShutdown int32
	last       *HealthStatus

	timeout       time.Duration
	slowPingAfter time.Duration
}

func NewHealthChecker(manager *Manager, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		manager:       manager,
		logger:        logger,
		timeout:       5 * time.Second,
		slowPingAfter: 500 * time.Millisecond,
	}
}

// Check runs the connectivity and pool checks
func (hc *HealthChecker) Check(ctx context.Context) *HealthStatus {
	if atomic.LoadInt32(&hc.isShutdown) == 1 {
		return &HealthStatus{
			Status:    StatusShutdown,
			Timestamp: time.Now(),
			Errors:    []string{"Health checker is shutdown"},
			Details:   make(map[string]interface{}),
		}
	}

	start := time.Now()
	status := &HealthStatus{
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	degraded := false

	pingStart := time.Now()
	err := hc.manager.DB().PingContext(ctx)
	pingDuration := time.Since(pingStart)
	status.Details["ping_duration"] = pingDuration.String()

	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("Connectivity: %v", err))
		hc.logger.Error("Database ping failed", zap.Error(err), zap.Duration("duration", pingDuration))
	} else if pingDuration > hc.slowPingAfter {
		status.Details["ping_warning"] = "Slow ping response"
		degraded = true
	}

	stats := hc.manager.DB().Stats()
	status.ConnectionCount = stats.OpenConnections
	status.Details["in_use"] = stats.InUse
	status.Details["idle"] = stats.Idle
	status.Details["wait_count"] = stats.WaitCount

	if stats.MaxOpenConnections > 0 && float64(stats.InUse)/float64(stats.MaxOpenConnections) > 0.9 {
		status.Details["pool_warning"] = "Connection pool nearly exhausted"
		degraded = true
	}

	switch {
	case len(status.Errors) > 0:
		status.Status = StatusUnhealthy
	case degraded:
		status.Status = StatusDegraded
	default:
		status.Status = StatusHealthy
	}
	status.ResponseTime = time.Since(start)

	hc.mu.Lock()
	hc.last = status
	hc.mu.Unlock()

	return status
}

// LastStatus returns the most recent check, or nil if none ran yet
func (hc *HealthChecker) LastStatus() *HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.last
}

func (hc *HealthChecker) Stop() {
	atomic.StoreInt32(&hc.isShutdown, 1)
}
