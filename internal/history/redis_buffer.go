package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/pkg/redis"
)

// RedisBuffer keeps the regime history as a capped Redis sorted set scored by as_of (ms)
// Redis 비활성 시 프로세스 메모리 버퍼로 대체
type RedisBuffer struct {
	client   *redis.Client
	key      string
	capacity int
	fallback *Buffer
}

// NewRedisBuffer creates a redis-backed regime history
func NewRedisBuffer(client *redis.Client, prefix string, capacity int) *RedisBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RedisBuffer{
		client:   client,
		key:      redis.RegimeHistoryKey(prefix),
		capacity: capacity,
		fallback: NewBuffer(capacity),
	}
}

// Recent returns up to k assessments before the given time, oldest first
func (b *RedisBuffer) Recent(ctx context.Context, before time.Time, k int) ([]contracts.RegimeAssessment, error) {
	if !b.client.Enabled() {
		return b.fallback.Recent(ctx, before, k)
	}
	if k <= 0 {
		return []contracts.RegimeAssessment{}, nil
	}

	// 최신순으로 k개 읽고 오래된 순으로 뒤집음
	raw, err := b.client.Redis().ZRevRangeByScore(ctx, b.key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(k),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read regime history: %w", err)
	}

	items := make([]contracts.RegimeAssessment, len(raw))
	for i, s := range raw {
		var a contracts.RegimeAssessment
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformed, i, err)
		}
		items[len(raw)-1-i] = a
	}
	return items, nil
}

// Append upserts an assessment by as_of and trims the set to capacity
func (b *RedisBuffer) Append(ctx context.Context, a contracts.RegimeAssessment) error {
	if !b.client.Enabled() {
		return b.fallback.Append(ctx, a)
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	score := strconv.FormatInt(a.AsOf.UnixMilli(), 10)

	// 같은 as_of 항목 제거 후 삽입, 가장 오래된 항목부터 잘라냄
	pipe := b.client.Redis().TxPipeline()
	pipe.ZRemRangeByScore(ctx, b.key, score, score)
	pipe.ZAdd(ctx, b.key, goredis.Z{Score: float64(a.AsOf.UnixMilli()), Member: data})
	pipe.ZRemRangeByRank(ctx, b.key, 0, int64(-b.capacity-1))
	pipe.Expire(ctx, b.key, redis.TTLHistory)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append regime history: %w", err)
	}
	return nil
}
