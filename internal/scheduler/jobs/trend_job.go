package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/health"
	"github.com/wonny/aegis-regime/pkg/logger"
	"github.com/wonny/aegis-regime/pkg/redis"
)

// TrendJob recomputes the health trend after the daily cycle and caches it
type TrendJob struct {
	schedule string
	records  contracts.HealthHistory
	cache    *redis.Cache
	logger   *logger.Logger
}

// NewTrendJob creates the health trend job
func NewTrendJob(schedule string, records contracts.HealthHistory, cache *redis.Cache, log *logger.Logger) *TrendJob {
	return &TrendJob{
		schedule: schedule,
		records:  records,
		cache:    cache,
		logger:   log,
	}
}

// Name returns the job name
func (j *TrendJob) Name() string {
	return "health_trend"
}

// Schedule returns the cron expression
func (j *TrendJob) Schedule() string {
	return j.schedule
}

// Run computes the trend over the last TrendWindow records
func (j *TrendJob) Run(ctx context.Context) error {
	records, err := j.records.ListHealth(ctx, health.TrendWindow)
	if err != nil {
		return fmt.Errorf("failed to list health history: %w", err)
	}
	if len(records) == 0 {
		j.logger.Info("No health history yet, trend skipped")
		return nil
	}

	trend := health.ComputeTrend(records)
	latest := records[len(records)-1].Date
	if err := j.cache.Set(ctx, redis.HealthTrendKey(latest), trend, redis.TTLTrend); err != nil {
		// 캐시 실패는 작업 실패 아님
		j.logger.WithError(err).Warn("Failed to cache health trend")
	}

	fields := map[string]interface{}{
		"date":    latest,
		"records": trend.RecordCount,
	}
	if trend.MovingAverage5 != nil {
		fields["ma5"] = *trend.MovingAverage5
	}
	if trend.RecoveryTimeDays != nil {
		fields["recovery_days"] = *trend.RecoveryTimeDays
	}
	j.logger.WithFields(fields).Info("Health trend updated")
	return nil
}
