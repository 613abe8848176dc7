package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

func (c *Cache) key(k string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, k)
}

// Predefined TTLs
const (
	TTLCycle   = 26 * time.Hour      // 최신 사이클 (다음 거래일까지)
	TTLTrend   = 10 * time.Minute    // 헬스 추세 요약
	TTLHistory = 30 * 24 * time.Hour // 레짐 히스토리 버퍼
)

// Common cache key generators
func LatestCycleKey() string {
	return "cycle:latest"
}

func CycleKey(cycleID string) string {
	return fmt.Sprintf("cycle:%s", cycleID)
}

func HealthTrendKey(date string) string {
	return fmt.Sprintf("health:trend:%s", date)
}

// RegimeHistoryKey is the sorted-set key of the bounded regime assessment buffer
func RegimeHistoryKey(prefix string) string {
	return fmt.Sprintf("%s:regime:history:zset", prefix)
}
