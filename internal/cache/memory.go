package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ===============================
// MEMORY CACHE IMPLEMENTATION
// ===============================

// memoryCache implements Cache using in-memory storage
type memoryCache struct {
	mu              sync.RWMutex
	items           map[string]*cacheItem
	prefix          string
	defaultTTL      time.Duration
	maxKeys         int
	cleanupInterval time.Duration
	logger          *zap.Logger
	hits            int64
	misses          int64
	startTime       time.Time
	stopCh          chan struct{}
	closeOnce       sync.Once
	now             func() time.Time
}

// cacheItem represents a cached item
type cacheItem struct {
	Value      interface{}
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(config *Config, logger *zap.Logger) Cache {
	return newMemoryCache(config, logger, time.Now)
}

func newMemoryCache(config *Config, logger *zap.Logger, now func() time.Time) *memoryCache {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &memoryCache{
		items:           make(map[string]*cacheItem),
		prefix:          config.KeyPrefix,
		defaultTTL:      config.TTL,
		maxKeys:         config.MaxKeys,
		cleanupInterval: config.CleanupInterval,
		logger:          logger,
		startTime:       now(),
		stopCh:          make(chan struct{}),
		now:             now,
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = DefaultConfig().TTL
	}
	if c.cleanupInterval <= 0 {
		c.cleanupInterval = DefaultConfig().CleanupInterval
	}

	go c.cleanup()

	return c
}

// Get retrieves a value from the cache
func (c *memoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.live(prefixed(c.prefix, key))
	if !ok {
		c.misses++
		return nil, false
	}

	c.hits++
	item.AccessedAt = c.now()
	return item.Value, true
}

// Set stores a value in the cache
func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := prefixed(c.prefix, key)
	if _, exists := c.items[k]; !exists && c.maxKeys > 0 && len(c.items) >= c.maxKeys {
		c.evictLRU()
	}

	now := c.now()
	c.items[k] = &cacheItem{Value: value, ExpiresAt: now.Add(ttl), AccessedAt: now}
	return nil
}

// Delete removes a value from the cache
func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, prefixed(c.prefix, key))
	return nil
}

// Increment atomically increments a counter, creating it with ttl
func (c *memoryCache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	values, err := c.IncrementAll(ctx, []string{key}, delta, ttl)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

func (c *memoryCache) IncrementAll(ctx context.Context, keys []string, delta int64, ttl time.Duration) ([]int64, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if item, ok := c.live(prefixed(c.prefix, key)); ok && !isCounter(item.Value) {
			return nil, fmt.Errorf("value at %s is not numeric", key)
		}
	}

	now := c.now()
	values := make([]int64, 0, len(keys))
	for _, key := range keys {
		values = append(values, c.incrementLocked(prefixed(c.prefix, key), delta, ttl, now))
	}
	return values, nil
}

// incrementLocked expects the caller to hold the write lock and to have checked the value type
func (c *memoryCache) incrementLocked(k string, delta int64, ttl time.Duration, now time.Time) int64 {
	item, ok := c.live(k)
	if !ok {
		if c.maxKeys > 0 && len(c.items) >= c.maxKeys {
			c.evictLRU()
		}
		c.items[k] = &cacheItem{Value: delta, ExpiresAt: now.Add(ttl), AccessedAt: now}
		return delta
	}

	switch v := item.Value.(type) {
	case int64:
		item.Value = v + delta
	case int:
		item.Value = int64(v) + delta
	}
	item.AccessedAt = now
	return item.Value.(int64)
}

func isCounter(v interface{}) bool {
	switch v.(type) {
	case int64, int:
		return true
	}
	return false
}

// GetInt reads a counter, zero when absent
func (c *memoryCache) GetInt(ctx context.Context, key string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.live(prefixed(c.prefix, key))
	if !ok {
		return 0, nil
	}

	switch v := item.Value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	}
	return 0, fmt.Errorf("value at %s is not numeric", key)
}

// live returns an unexpired item. Callers hold the lock.
func (c *memoryCache) live(key string) (*cacheItem, bool) {
	item, ok := c.items[key]
	if !ok || c.now().After(item.ExpiresAt) {
		return nil, false
	}
	return item, true
}

// Stats returns cache statistics
func (c *memoryCache) Stats(ctx context.Context) (*CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &CacheStats{
		Provider: "memory",
		Hits:     c.hits,
		Misses:   c.misses,
		Keys:     int64(len(c.items)),
		Uptime:   c.now().Sub(c.startTime),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRatio = float64(stats.Hits) / float64(total)
	}
	return stats, nil
}

// Health reports an error once the cache is closed
func (c *memoryCache) Health(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("cache is closed")
	default:
		return nil
	}
}

// Close stops the cleanup goroutine
func (c *memoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })
	return nil
}

// cleanup runs periodic cleanup of expired items
func (c *memoryCache) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCh:
			return
		}
	}
}

// cleanupExpired removes expired items
func (c *memoryCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := 0
	for key, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, key)
			expired++
		}
	}

	if expired > 0 {
		c.logger.Debug("Cleaned up expired cache items",
			zap.Int("expired_count", expired),
			zap.Int("remaining_count", len(c.items)),
		)
	}
}

// evictLRU evicts the least recently used item
func (c *memoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range c.items {
		if oldestKey == "" || item.AccessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.AccessedAt
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
