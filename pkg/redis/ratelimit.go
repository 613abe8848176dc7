package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter implements sliding window rate limiting using Redis
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // Unique identifier (e.g., "alert")
	Limit  int           // Maximum events allowed
	Window time.Duration // Time window
}

// RateLimitResult is the decision for one event
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	// RetryAfter: 가장 오래된 이벤트가 윈도우를 벗어나기까지 (거부 시에만)
	RetryAfter time.Duration
}

// slidingWindow atomically trims, counts and records one event
// 반환: {allowed, remaining, oldest_score}
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, 0, tonumber(oldest[2])}
`)

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

// Allow records one event if the window has room
// Redis 비활성화 시 항상 허용
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (RateLimitResult, error) {
	if !r.client.Enabled() {
		return RateLimitResult{Allowed: true, Remaining: cfg.Limit}, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := time.Now().UnixMilli()
	// 같은 ms 내 이벤트도 구분되도록 멤버는 고유값
	member := fmt.Sprintf("%d:%s", now, uuid.NewString())

	vals, err := slidingWindow.Run(ctx, r.client.Redis(), []string{key},
		now,
		cfg.Window.Milliseconds(),
		cfg.Limit,
		member,
	).Int64Slice()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit script failed: %w", err)
	}

	res := RateLimitResult{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[1]),
	}
	if !res.Allowed {
		res.RetryAfter = retryAfter(now, vals[2], cfg.Window)
	}
	return res, nil
}

// retryAfter is the time until the oldest recorded event leaves the window
func retryAfter(nowMs, oldestMs int64, window time.Duration) time.Duration {
	wait := time.Duration(oldestMs+window.Milliseconds()-nowMs) * time.Millisecond
	return max(wait, 0)
}

// AlertRateLimit throttles CRITICAL health alerts per hour
// 알림 폭주 방지 (연속 CRITICAL 사이클)
func AlertRateLimit(maxPerHour int) RateLimitConfig {
	return RateLimitConfig{
		Key:    "alert",
		Limit:  maxPerHour,
		Window: time.Hour,
	}
}
