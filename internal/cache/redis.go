package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ===============================
// REDIS CACHE IMPLEMENTATION
// ===============================

type redisCache struct {
	client    *redis.Client
	logger    *zap.Logger
	config    *Config
	startTime time.Time
}

// NewRedisCache creates a new Redis-based cache
func NewRedisCache(config *Config, logger *zap.Logger) (Cache, error) {
	if config == nil {
		return nil, fmt.Errorf("cache config cannot be nil")
	}
	if config.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	options, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		options.PoolSize = config.PoolSize
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis cache initialized",
		zap.String("addr", options.Addr),
		zap.Int("db", options.DB),
	)

	return &redisCache{
		client:    client,
		logger:    logger,
		config:    config,
		startTime: time.Now(),
	}, nil
}

func (r *redisCache) key(k string) string {
	return prefixed(r.config.KeyPrefix, k)
}

func (r *redisCache) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return r.config.TTL
	}
	return ttl
}

func (r *redisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	} else if err != nil {
		r.logger.Error("Failed to get from Redis",
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}

	// Try to unmarshal JSON first (for complex types)
	var result interface{}
	if err := json.Unmarshal([]byte(val), &result); err == nil {
		return result, true
	}

	return val, true
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var val string
	switch v := value.(type) {
	case string:
		val = v
	case []byte:
		val = string(v)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		val = string(data)
	}

	return r.client.Set(ctx, r.key(key), val, r.ttl(ttl)).Err()
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Increment bumps the counter and sets its expiry only when none is set
func (r *redisCache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	values, err := r.IncrementAll(ctx, []string{key}, delta, ttl)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// IncrementAll runs every bump in one MULTI/EXEC transaction. A transport
// failure applies none of them.
func (r *redisCache) IncrementAll(ctx context.Context, keys []string, delta int64, ttl time.Duration) ([]int64, error) {
	incrs := make([]*redis.IntCmd, len(keys))
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			k := r.key(key)
			incrs[i] = pipe.IncrBy(ctx, k, delta)
			pipe.ExpireNX(ctx, k, r.ttl(ttl))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("increment %s: %w", strings.Join(keys, ","), err)
	}

	values := make([]int64, len(incrs))
	for i, incr := range incrs {
		values[i] = incr.Val()
	}
	return values, nil
}

func (r *redisCache) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value at %s is not numeric: %w", key, err)
	}
	return n, nil
}

func (r *redisCache) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{
		Provider: "redis",
		Uptime:   time.Since(r.startTime),
	}

	keys, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	stats.Keys = keys

	return stats, nil
}

func (r *redisCache) Health(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	return err
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
