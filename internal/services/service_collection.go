// file: internal/services/service_collection.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"engagehub/internal/cache"
	"engagehub/internal/config"
	"engagehub/internal/events"
	"engagehub/internal/repositories"
	"engagehub/internal/streaks"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Stores are the persistence collaborators the services depend on
type Stores struct {
	Badge      repositories.BadgeRepository
	Award      repositories.AwardRepository
	Ledger     repositories.LedgerRepository
	Attendance repositories.AttendanceRepository
	Submission repositories.SubmissionRepository
}

// StoresFrom exposes a repository collection as Stores
func StoresFrom(c *repositories.Collection) Stores {
	return Stores{
		Badge:      c.Badge,
		Award:      c.Award,
		Ledger:     c.Ledger,
		Attendance: c.Attendance,
		Submission: c.Submission,
	}
}

// Infrastructure lets callers supply prebuilt components. Nil fields are built from config.
type Infrastructure struct {
	Cache     cache.Cache
	EventBus  events.EventBus
	Notifier  Notifier
	Directory Directory
	Clock     Clock
}

// ServiceCollection holds all services with dependency injection
type ServiceCollection struct {
	Ledger      LedgerService
	Attendance  AttendanceBonusService
	Evidence    EvidenceService
	Completions CompletionService
	Rewards     RewardFacade

	Cache     cache.Cache
	EventBus  events.EventBus
	Consumers *CompletionConsumers
	Logger    *zap.Logger
	Config    *config.Config

	healthCheckers map[string]HealthChecker
	startTime      time.Time
	mu             sync.RWMutex
	started        bool
}

// ServiceHealth represents the health status of the service collection
type ServiceHealth struct {
	Status       string                   `json:"status"`
	Timestamp    time.Time                `json:"timestamp"`
	Dependencies map[string]ServiceStatus `json:"dependencies"`
	Uptime       time.Duration            `json:"uptime"`
	Issues       []string                 `json:"issues,omitempty"`
}

// ServiceStatus represents the status of an individual dependency
type ServiceStatus struct {
	Name         string        `json:"name"`
	Status       string        `json:"status"` // healthy, unhealthy
	LastCheck    time.Time     `json:"last_check"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// HealthChecker interface for dependency health checks
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	ServiceName() string
}

type funcChecker struct {
	name string
	fn   func(ctx context.Context) error
}

func (c funcChecker) HealthCheck(ctx context.Context) error { return c.fn(ctx) }
func (c funcChecker) ServiceName() string                  { return c.name }

// NewHealthChecker wraps fn as a named HealthChecker
func NewHealthChecker(name string, fn func(ctx context.Context) error) HealthChecker {
	return funcChecker{name: name, fn: fn}
}

// NewServiceCollection creates the services in dependency order
func NewServiceCollection(stores Stores, infra Infrastructure, cfg *config.Config, logger *zap.Logger) (*ServiceCollection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if stores.Badge == nil || stores.Award == nil || stores.Ledger == nil || stores.Attendance == nil || stores.Submission == nil {
		return nil, fmt.Errorf("all stores are required")
	}

	sc := &ServiceCollection{
		Logger:         logger,
		Config:         cfg,
		healthCheckers: make(map[string]HealthChecker),
		startTime:      time.Now(),
	}

	if err := sc.initializeInfrastructure(&infra); err != nil {
		return nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}

	sc.initializeServices(stores, infra)

	logger.Info("Service collection initialized successfully")
	return sc, nil
}

// initializeInfrastructure sets up the cache and event bus
func (sc *ServiceCollection) initializeInfrastructure(infra *Infrastructure) error {
	if infra.Clock == nil {
		infra.Clock = SystemClock()
	}

	if infra.Cache == nil {
		c, err := cache.NewCache(CacheConfig(sc.Config.Cache), sc.Logger)
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		infra.Cache = c
	}
	sc.Cache = infra.Cache

	if infra.EventBus == nil {
		infra.EventBus = events.NewInMemoryEventBus(EventBusConfig(sc.Config.Events), sc.Logger)
	}
	sc.EventBus = infra.EventBus

	if infra.Notifier == nil {
		infra.Notifier = NewLogNotifier(nil, sc.Logger)
	}
	if infra.Directory == nil {
		infra.Directory = NewStaticDirectory(sc.Config.Notifications.AdminUserIDs, nil)
	}

	sc.registerHealthChecker(NewHealthChecker("cache", sc.Cache.Health))
	sc.registerHealthChecker(NewHealthChecker("event_bus", func(ctx context.Context) error {
		return sc.EventBus.Health()
	}))
	return nil
}

func (sc *ServiceCollection) initializeServices(stores Stores, infra Infrastructure) {
	sc.Ledger = NewLedgerService(stores.Badge, stores.Award, stores.Ledger, infra.Clock, sc.Logger)

	sc.Attendance = NewAttendanceBonusService(
		stores.Attendance,
		stores.Badge,
		sc.Ledger,
		infra.Clock,
		sc.Logger,
		AttendanceConfig(sc.Config.Rewards),
	)

	sc.Evidence = NewEvidenceService(
		stores.Submission,
		stores.Badge,
		sc.Ledger,
		infra.Notifier,
		infra.Directory,
		infra.Clock,
		sc.Logger,
	)

	sc.Completions = NewCompletionService(sc.EventBus, sc.Cache, infra.Clock, sc.Logger)
	sc.Consumers = NewCompletionConsumers(sc.Ledger, infra.Notifier, sc.Cache, sc.Config.Cache.DefaultTTL, sc.Logger)
	sc.Rewards = NewRewardFacade(sc.Ledger, sc.Attendance, sc.Evidence, sc.Logger)
}

// ===============================
// CONFIG MAPPING
// ===============================

// EventBusConfig maps the events section onto the bus settings
func EventBusConfig(cfg config.EventsConfig) *events.EventBusConfig {
	return &events.EventBusConfig{
		BufferSize:     cfg.QueueSize,
		WorkerCount:    cfg.Workers,
		HandlerTimeout: cfg.HandlerTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}
}

// CacheConfig maps the cache section onto the cache settings
func CacheConfig(cfg config.CacheConfig) *cache.Config {
	c := cache.DefaultConfig()
	c.Provider = cfg.Provider
	c.RedisURL = cfg.RedisURL
	c.KeyPrefix = cfg.KeyPrefix
	if cfg.DefaultTTL > 0 {
		c.TTL = cfg.DefaultTTL
	}
	return c
}

// AttendanceConfig maps the rewards section onto the bonus rules
func AttendanceConfig(cfg config.RewardsConfig) *AttendanceBonusConfig {
	return &AttendanceBonusConfig{
		LookbackDays: cfg.LookbackDays,
		Rules: streaks.Rules{
			WeeklyMinDays:         cfg.WeeklyMinDays,
			WeeklyPoints:          cfg.WeeklyPoints,
			MonthlyMinDays:        cfg.MonthlyMinDays,
			MonthlyPoints:         cfg.MonthlyPoints,
			StreakMinDays:         cfg.StreakMinDays,
			StreakPointsPerDay:    cfg.StreakPointsPerDay,
			PerfectAttendanceCode: cfg.PerfectAttendanceCode,
		},
	}
}

// ===============================
// LIFECYCLE
// ===============================

// Start registers the consumer groups and starts the bus workers
func (sc *ServiceCollection) Start(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.started {
		return nil
	}

	if err := sc.Consumers.Register(sc.EventBus); err != nil {
		return fmt.Errorf("failed to register consumer groups: %w", err)
	}
	if err := sc.EventBus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}

	sc.started = true
	return nil
}

// Shutdown drains the bus and closes the cache
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	sc.Logger.Info("Shutting down service collection")

	err := sc.EventBus.Stop(ctx)
	err = multierr.Append(err, sc.Cache.Close())

	if err != nil {
		sc.Logger.Error("Service collection shutdown incomplete", zap.Error(err))
		return err
	}

	sc.Logger.Info("Service collection shutdown completed")
	return nil
}

// ===============================
// HEALTH AND MONITORING
// ===============================

// RegisterHealthChecker adds a dependency to the health report
func (sc *ServiceCollection) RegisterHealthChecker(checker HealthChecker) {
	sc.registerHealthChecker(checker)
}

func (sc *ServiceCollection) registerHealthChecker(checker HealthChecker) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.healthCheckers == nil {
		sc.healthCheckers = make(map[string]HealthChecker)
	}
	sc.healthCheckers[checker.ServiceName()] = checker
}

// HealthCheck checks every registered dependency
func (sc *ServiceCollection) HealthCheck(ctx context.Context) *ServiceHealth {
	sc.mu.RLock()
	checkers := make([]HealthChecker, 0, len(sc.healthCheckers))
	for _, c := range sc.healthCheckers {
		checkers = append(checkers, c)
	}
	sc.mu.RUnlock()

	health := &ServiceHealth{
		Status:       "healthy",
		Timestamp:    time.Now(),
		Dependencies: make(map[string]ServiceStatus, len(checkers)),
		Uptime:       time.Since(sc.startTime),
	}

	for _, checker := range checkers {
		start := time.Now()
		status := ServiceStatus{Name: checker.ServiceName(), Status: "healthy", LastCheck: start}

		if err := checker.HealthCheck(ctx); err != nil {
			status.Status = "unhealthy"
			status.Error = err.Error()
			health.Status = "degraded"
			health.Issues = append(health.Issues, fmt.Sprintf("%s: %s", status.Name, err))
		}
		status.ResponseTime = time.Since(start)
		health.Dependencies[status.Name] = status
	}

	return health
}
