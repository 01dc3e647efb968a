package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sander-remitly/packer/internal/logger"
	"github.com/sander-remitly/packer/internal/models"
	"go.uber.org/zap"
)

const (
	// Cache TTL constants
	InitialTTL = 5 * time.Minute
	MaxTTL     = 24 * time.Hour

	// Cache key prefix
	CacheKeyPrefix = "packer:"

	// Stats keys
	StatsHitsKey   = "packer:stats:hits"
	StatsMissesKey = "packer:stats:misses"
)

// CachedResult represents a cached solution
type CachedResult struct {
	Package           models.Package `json:"package"`
	Selected          []int          `json:"selected"`
	TotalCost         float64        `json:"total_cost"`
	TotalWeight       float64        `json:"total_weight"`
	CalculationTimeMs int64          `json:"calculation_time_ms"`
	CachedAt          time.Time      `json:"cached_at"`
	HitCount          int            `json:"hit_count"`
	CurrentTTL        time.Duration  `json:"current_ttl"`
}

// CacheStats represents cache statistics
type CacheStats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	TotalKeys  int64   `json:"total_keys"`
	MemoryUsed string  `json:"memory_used"`
	Uptime     string  `json:"uptime"`
}

// Cache handles Redis caching operations
type Cache struct {
	client  *redis.Client
	enabled bool
	ctx     context.Context
}

// NewCache creates a cache configured from REDIS_* environment variables
func NewCache() *Cache {
	enabled := os.Getenv("REDIS_ENABLED") == "true"

	if !enabled {
		logger.Log.Info("Redis cache is disabled")
		return &Cache{enabled: false, ctx: context.Background()}
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return newWithClient(context.Background(), client, redisAddr)
}

// newWithClient pings the server and falls back to a disabled cache when it is unreachable
func newWithClient(ctx context.Context, client *redis.Client, addr string) *Cache {
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.Warn("Failed to connect to Redis. Cache disabled.",
			zap.String("address", addr),
			zap.Error(err),
		)
		client.Close()
		return &Cache{enabled: false, ctx: ctx}
	}

	logger.Log.Info("Redis cache enabled", zap.String("address", addr))
	return &Cache{
		client:  client,
		enabled: true,
		ctx:     ctx,
	}
}

// IsEnabled returns whether caching is enabled
func (c *Cache) IsEnabled() bool {
	return c.enabled
}

// generateKey creates a cache key for a package.
// Item order is part of the key since it decides which of several equally
// good selections is returned.
func (c *Cache) generateKey(pkg models.Package) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(pkg.Capacity))
	for _, item := range pkg.Items {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(item.Index))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(item.Weight, 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(item.Cost, 'g', -1, 64))
	}

	return fmt.Sprintf("%s%016x", CacheKeyPrefix, xxhash.Sum64String(b.String()))
}

// Get retrieves a cached solution and extends its TTL
func (c *Cache) Get(pkg models.Package) (*CachedResult, bool) {
	if !c.enabled {
		return nil, false
	}

	key := c.generateKey(pkg)

	data, err := c.client.Get(c.ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.incrementMisses()
		return nil, false
	} else if err != nil {
		logger.Log.Warn("Cache get error", zap.String("key", key), zap.Error(err))
		c.incrementMisses()
		return nil, false
	}

	var result CachedResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Log.Warn("Cache unmarshal error", zap.String("key", key), zap.Error(err))
		c.incrementMisses()
		return nil, false
	}

	// Popular packages live longer: double the TTL on every hit, up to MaxTTL
	result.HitCount++
	result.CurrentTTL = min(result.CurrentTTL*2, MaxTTL)

	if err := c.set(key, &result, result.CurrentTTL); err != nil {
		logger.Log.Warn("Failed to update cache TTL", zap.String("key", key), zap.Error(err))
	}

	c.incrementHits()
	return &result, true
}

// Set stores a solution in the cache
func (c *Cache) Set(pkg models.Package, selected []int, totalCost, totalWeight float64, calcTime int64) error {
	if !c.enabled {
		return nil
	}

	cached := &CachedResult{
		Package:           pkg,
		Selected:          selected,
		TotalCost:         totalCost,
		TotalWeight:       totalWeight,
		CalculationTimeMs: calcTime,
		CachedAt:          time.Now(),
		HitCount:          0,
		CurrentTTL:        InitialTTL,
	}

	return c.set(c.generateKey(pkg), cached, InitialTTL)
}

func (c *Cache) set(key string, result *CachedResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(c.ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// GetStats returns cache statistics
func (c *Cache) GetStats() (*CacheStats, error) {
	if !c.enabled {
		return &CacheStats{}, nil
	}

	hits, _ := c.client.Get(c.ctx, StatsHitsKey).Int64()
	misses, _ := c.client.Get(c.ctx, StatsMissesKey).Int64()

	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	keys, err := c.solutionKeys()
	if err != nil {
		return nil, err
	}

	memoryUsed := "N/A"
	uptime := "N/A"

	info, err := c.client.Info(c.ctx, "memory", "server").Result()
	if err == nil {
		if v := parseInfoField(info, "used_memory_human"); v != "" {
			memoryUsed = v
		}
		if secs, err := strconv.Atoi(parseInfoField(info, "uptime_in_seconds")); err == nil {
			uptime = (time.Duration(secs) * time.Second).String()
		}
	}

	return &CacheStats{
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
		TotalKeys:  int64(len(keys)),
		MemoryUsed: memoryUsed,
		Uptime:     uptime,
	}, nil
}

// Clear removes all cached solutions and resets the counters
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}

	keys, err := c.solutionKeys()
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		if err := c.client.Del(c.ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	if err := c.client.Del(c.ctx, StatsHitsKey, StatsMissesKey).Err(); err != nil {
		return fmt.Errorf("failed to reset cache stats: %w", err)
	}

	return nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c.enabled && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// solutionKeys lists cached solution keys, leaving out the stats counters
func (c *Cache) solutionKeys() ([]string, error) {
	var keys []string

	iter := c.client.Scan(c.ctx, 0, CacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(c.ctx) {
		key := iter.Val()
		if key == StatsHitsKey || key == StatsMissesKey {
			continue
		}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get cache keys: %w", err)
	}

	return keys, nil
}

func (c *Cache) incrementHits() {
	c.client.Incr(c.ctx, StatsHitsKey)
}

func (c *Cache) incrementMisses() {
	c.client.Incr(c.ctx, StatsMissesKey)
}

// parseInfoField extracts a field value from Redis INFO output
func parseInfoField(info, field string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if value, ok := strings.CutPrefix(line, field+":"); ok {
			return value
		}
	}
	return ""
}
