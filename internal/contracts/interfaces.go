package contracts

import (
	"context"
	"time"
)

// RegimeHistory stores the caller-owned buffer of prior assessments
// ⭐ SSOT: 엔진은 히스토리를 보관하지 않음, 호출자가 사이클 사이에 소유
type RegimeHistory interface {
	// Recent returns up to k assessments with as_of strictly before `before`, oldest first
	Recent(ctx context.Context, before time.Time, k int) ([]RegimeAssessment, error)
	// Append upserts a by as_of, keeping entries ordered by as_of
	Append(ctx context.Context, a RegimeAssessment) error
}

// HealthHistory persists one HealthRecord per day
type HealthHistory interface {
	// UpsertHealth replaces any record with the same date
	UpsertHealth(ctx context.Context, rec HealthRecord) error
	// ListHealth returns up to limit most recent records, oldest first (limit <= 0: all)
	ListHealth(ctx context.Context, limit int) ([]HealthRecord, error)
}

// CyclePublisher receives every completed cycle (dashboards, alerting)
type CyclePublisher interface {
	Publish(ctx context.Context, out *CycleOutput) error
}
