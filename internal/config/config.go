package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	Logging       LoggingConfig
	Events        EventsConfig
	Rewards       RewardsConfig
	Scheduler     SchedulerConfig
	Notifications NotificationConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Environment     string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	MaxHeaderBytes  int
	ServerName      string

	// RateLimitPerMinute is per client IP, zero disables limiting
	RateLimitPerMinute int
}

// DatabaseConfig holds the connection pool and migration settings
type DatabaseConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	HealthCheckTimeout time.Duration
	MigrationsPath     string
	RunMigrations      bool
}

// CacheConfig selects the cache backend used for counters
type CacheConfig struct {
	Provider   string // memory, redis
	RedisURL   string
	KeyPrefix  string
	DefaultTTL time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json, console
	EnableFile bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// EventsConfig controls the completion event bus
type EventsConfig struct {
	Workers         int
	QueueSize       int
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	HandlerTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// RewardsConfig holds attendance bonus rules
type RewardsConfig struct {
	LookbackDays          int
	WeeklyMinDays         int
	WeeklyPoints          int
	MonthlyMinDays        int
	MonthlyPoints         int
	StreakMinDays         int
	StreakPointsPerDay    int
	PerfectAttendanceCode string
}

// SchedulerConfig controls the daily attendance bonus sweep
type SchedulerConfig struct {
	Enabled   bool
	BonusCron string
	Timezone  string
}

// NotificationConfig lists who is told about new evidence submissions
type NotificationConfig struct {
	AdminUserIDs []int64
}

// Load reads the environment (and an optional .env file) into a Config
func Load() (*Config, error) {
	env := getEnv("GO_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load() // fallback to .env
		}
	}

	config := &Config{
		Server:        loadServerConfig(env),
		Database:      loadDatabaseConfig(env),
		Cache:         loadCacheConfig(),
		Logging:       loadLoggingConfig(env),
		Events:        loadEventsConfig(),
		Rewards:       loadRewardsConfig(),
		Scheduler:     loadSchedulerConfig(),
		Notifications: loadNotificationConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadServerConfig(env string) ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Environment:     env,
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:  getIntEnv("MAX_HEADER_BYTES", 1<<20),
		ServerName:      getEnv("SERVER_NAME", "EngageHub"),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 600),
	}
}

func loadDatabaseConfig(env string) DatabaseConfig {
	var defaultMaxOpen, defaultMaxIdle int
	var defaultConnLifetime time.Duration

	switch env {
	case "production":
		defaultMaxOpen = 50
		defaultMaxIdle = 20
		defaultConnLifetime = 15 * time.Minute
	case "staging":
		defaultMaxOpen = 25
		defaultMaxIdle = 10
		defaultConnLifetime = 10 * time.Minute
	default: // development
		defaultMaxOpen = 10
		defaultMaxIdle = 5
		defaultConnLifetime = 5 * time.Minute
	}

	return DatabaseConfig{
		URL:                os.Getenv("DATABASE_URL"),
		MaxOpenConns:       getIntEnv("DB_MAX_OPEN_CONNS", defaultMaxOpen),
		MaxIdleConns:       getIntEnv("DB_MAX_IDLE_CONNS", defaultMaxIdle),
		ConnMaxLifetime:    getDurationEnv("DB_CONN_MAX_LIFETIME", defaultConnLifetime),
		ConnMaxIdleTime:    getDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		SlowQueryThreshold: getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		HealthCheckTimeout: getDurationEnv("DB_HEALTH_CHECK_TIMEOUT", 30*time.Second),
		MigrationsPath:     getEnv("DB_MIGRATIONS_PATH", "./internal/database/migrations"),
		RunMigrations:      getBoolEnv("DB_RUN_MIGRATIONS", true),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Provider:   getEnv("CACHE_PROVIDER", "memory"),
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
		KeyPrefix:  getEnv("CACHE_KEY_PREFIX", "engagehub:"),
		DefaultTTL: getDurationEnv("CACHE_DEFAULT_TTL", 48*time.Hour),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	return LoggingConfig{
		Level:      getEnv("LOG_LEVEL", getDefaultLogLevel(env)),
		Format:     getEnv("LOG_FORMAT", getDefaultLogFormat(env)),
		EnableFile: getBoolEnv("LOG_ENABLE_FILE", env == "production"),
		FilePath:   getEnv("LOG_FILE_PATH", "/var/log/engagehub/app.log"),
		MaxSize:    getIntEnv("LOG_MAX_SIZE", 100),
		MaxBackups: getIntEnv("LOG_MAX_BACKUPS", 3),
		MaxAge:     getIntEnv("LOG_MAX_AGE", 28),
		Compress:   getBoolEnv("LOG_COMPRESS", true),
	}
}

func loadEventsConfig() EventsConfig {
	return EventsConfig{
		Workers:         getIntEnv("EVENT_WORKERS", 4),
		QueueSize:       getIntEnv("EVENT_QUEUE_SIZE", 1000),
		RetryAttempts:   getIntEnv("EVENT_RETRY_ATTEMPTS", 3),
		RetryBaseDelay:  getDurationEnv("EVENT_RETRY_BASE_DELAY", 200*time.Millisecond),
		RetryMaxDelay:   getDurationEnv("EVENT_RETRY_MAX_DELAY", 5*time.Second),
		HandlerTimeout:  getDurationEnv("EVENT_HANDLER_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDurationEnv("EVENT_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadRewardsConfig() RewardsConfig {
	return RewardsConfig{
		LookbackDays:          getIntEnv("ATTENDANCE_LOOKBACK_DAYS", 90),
		WeeklyMinDays:         getIntEnv("BONUS_WEEKLY_MIN_DAYS", 5),
		WeeklyPoints:          getIntEnv("BONUS_WEEKLY_POINTS", 50),
		MonthlyMinDays:        getIntEnv("BONUS_MONTHLY_MIN_DAYS", 15),
		MonthlyPoints:         getIntEnv("BONUS_MONTHLY_POINTS", 200),
		StreakMinDays:         getIntEnv("BONUS_STREAK_MIN_DAYS", 10),
		StreakPointsPerDay:    getIntEnv("BONUS_STREAK_POINTS_PER_DAY", 5),
		PerfectAttendanceCode: getEnv("BONUS_PERFECT_ATTENDANCE_CODE", "PERFECT_ATTENDANCE"),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:   getBoolEnv("SCHEDULER_ENABLED", true),
		BonusCron: getEnv("SCHEDULER_BONUS_CRON", "0 18 * * *"),
		Timezone:  getEnv("SCHEDULER_TIMEZONE", "UTC"),
	}
}

func loadNotificationConfig() NotificationConfig {
	return NotificationConfig{
		AdminUserIDs: getInt64ListEnv("ADMIN_USER_IDS", nil),
	}
}

// ===============================
// VALIDATION
// ===============================

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events config: %w", err)
	}

	if err := c.Rewards.Validate(); err != nil {
		return fmt.Errorf("rewards config: %w", err)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if s.ReadTimeout <= 0 {
		return fmt.Errorf("ReadTimeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		return fmt.Errorf("WriteTimeout must be positive")
	}

	if s.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE cannot be negative")
	}

	return nil
}

func (d *DatabaseConfig) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("MaxOpenConns must be positive")
	}

	if d.MaxIdleConns < 0 {
		return fmt.Errorf("MaxIdleConns cannot be negative")
	}

	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("MaxIdleConns cannot be greater than MaxOpenConns")
	}

	if d.ConnMaxLifetime <= 0 {
		return fmt.Errorf("ConnMaxLifetime must be positive")
	}

	return nil
}

func (c *CacheConfig) Validate() error {
	switch c.Provider {
	case "memory":
		return nil
	case "redis":
		if _, err := url.Parse(c.RedisURL); err != nil || c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is invalid: %q", c.RedisURL)
		}
		return nil
	default:
		return fmt.Errorf("unknown cache provider %q", c.Provider)
	}
}

func (e *EventsConfig) Validate() error {
	if e.Workers <= 0 {
		return fmt.Errorf("EVENT_WORKERS must be positive")
	}

	if e.QueueSize <= 0 {
		return fmt.Errorf("EVENT_QUEUE_SIZE must be positive")
	}

	if e.RetryAttempts < 0 {
		return fmt.Errorf("EVENT_RETRY_ATTEMPTS cannot be negative")
	}

	return nil
}

func (r *RewardsConfig) Validate() error {
	if r.LookbackDays <= 0 {
		return fmt.Errorf("ATTENDANCE_LOOKBACK_DAYS must be positive")
	}

	if r.WeeklyMinDays <= 0 || r.WeeklyMinDays > 7 {
		return fmt.Errorf("BONUS_WEEKLY_MIN_DAYS must be between 1 and 7")
	}

	if r.MonthlyMinDays <= 0 || r.MonthlyMinDays > 31 {
		return fmt.Errorf("BONUS_MONTHLY_MIN_DAYS must be between 1 and 31")
	}

	if r.StreakMinDays <= 0 {
		return fmt.Errorf("BONUS_STREAK_MIN_DAYS must be positive")
	}

	if r.PerfectAttendanceCode == "" {
		return fmt.Errorf("BONUS_PERFECT_ATTENDANCE_CODE is required")
	}

	return nil
}

func (s *SchedulerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.BonusCron == "" {
		return fmt.Errorf("SCHEDULER_BONUS_CRON is required when the scheduler is enabled")
	}

	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid SCHEDULER_TIMEZONE: %w", err)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// ===============================
// HELPERS
// ===============================

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getInt64ListEnv parses a comma separated list of ids, skipping bad entries
func getInt64ListEnv(key string, defaultValue []int64) []int64 {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}

	var ids []int64
	for _, part := range strings.Split(value, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func getDefaultLogLevel(env string) string {
	switch env {
	case "production":
		return "info"
	default:
		return "debug"
	}
}

func getDefaultLogFormat(env string) string {
	switch env {
	case "production":
		return "json"
	default:
		return "console"
	}
}
