package history

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-regime/internal/contracts"
)

// PostgresStore implements RegimeHistory and HealthHistory on the regime.* tables
// ⭐ SSOT: 히스토리 DB 저장소는 여기서만 (스키마: pkg/database/schema.go)
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new postgres-backed history store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Recent returns up to k assessments before the given time, oldest first
func (s *PostgresStore) Recent(ctx context.Context, before time.Time, k int) ([]contracts.RegimeAssessment, error) {
	if k <= 0 {
		return []contracts.RegimeAssessment{}, nil
	}

	query := `
		SELECT as_of, regime, confidence, confidence_level, unreliable, signals
		FROM regime.assessments
		WHERE as_of < $1
		ORDER BY as_of DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, before, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	items := []contracts.RegimeAssessment{}
	for rows.Next() {
		var (
			a       contracts.RegimeAssessment
			regime  string
			level   string
			signals []byte
		)
		if err := rows.Scan(&a.AsOf, &regime, &a.Confidence, &level, &a.Unreliable, &signals); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		if err := json.Unmarshal(signals, &a.Signals); err != nil {
			return nil, fmt.Errorf("%w: signals at %s: %v", ErrMalformed, a.AsOf.Format(time.RFC3339), err)
		}
		// 알 수 없는 라벨 = malformed history (엔진이 빈 히스토리로 처리)
		if a.Regime, err = contracts.ParseRegime(regime); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if a.ConfidenceLevel, err = contracts.ParseConfidenceLevel(level); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(items)
	return items, nil
}

// Append stores an assessment; re-running the same as_of replaces it
func (s *PostgresStore) Append(ctx context.Context, a contracts.RegimeAssessment) error {
	signals, err := json.Marshal(a.Signals)
	if err != nil {
		return fmt.Errorf("failed to encode signals: %w", err)
	}

	query := `
		INSERT INTO regime.assessments (as_of, regime, confidence, confidence_level, unreliable, signals)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (as_of) DO UPDATE SET
			regime = EXCLUDED.regime,
			confidence = EXCLUDED.confidence,
			confidence_level = EXCLUDED.confidence_level,
			unreliable = EXCLUDED.unreliable,
			signals = EXCLUDED.signals
	`

	_, err = s.pool.Exec(ctx, query,
		a.AsOf, string(a.Regime), a.Confidence, string(a.ConfidenceLevel), a.Unreliable, string(signals),
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// UpsertHealth replaces the record for rec.Date
func (s *PostgresStore) UpsertHealth(ctx context.Context, rec contracts.HealthRecord) error {
	date, err := time.Parse(contracts.RecordDateLayout, rec.Date)
	if err != nil {
		return fmt.Errorf("invalid record date %q: %w", rec.Date, err)
	}
	violations, err := json.Marshal(nonNil(rec.Violations))
	if err != nil {
		return fmt.Errorf("failed to encode violations: %w", err)
	}

	query := `
		INSERT INTO regime.health_history (record_date, cycle_id, health_score, status, violation_count, strategy_count, violations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (record_date) DO UPDATE SET
			cycle_id = EXCLUDED.cycle_id,
			health_score = EXCLUDED.health_score,
			status = EXCLUDED.status,
			violation_count = EXCLUDED.violation_count,
			strategy_count = EXCLUDED.strategy_count,
			violations = EXCLUDED.violations,
			updated_at = NOW()
	`

	_, err = s.pool.Exec(ctx, query,
		date, rec.CycleID, rec.HealthScore, string(rec.Status), rec.ViolationCount, rec.StrategyCount, string(violations),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert health record: %w", err)
	}
	return nil
}

// ListHealth returns up to limit most recent records, oldest first
func (s *PostgresStore) ListHealth(ctx context.Context, limit int) ([]contracts.HealthRecord, error) {
	query := `
		SELECT record_date, cycle_id, health_score, status, violation_count, strategy_count, violations
		FROM regime.health_history
		ORDER BY record_date DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query health history: %w", err)
	}
	defer rows.Close()

	records := []contracts.HealthRecord{}
	for rows.Next() {
		var (
			r          contracts.HealthRecord
			date       time.Time
			status     string
			violations []byte
		)
		if err := rows.Scan(&date, &r.CycleID, &r.HealthScore, &status, &r.ViolationCount, &r.StrategyCount, &violations); err != nil {
			return nil, fmt.Errorf("failed to scan health record: %w", err)
		}
		if err := json.Unmarshal(violations, &r.Violations); err != nil {
			return nil, fmt.Errorf("%w: violations on %s: %v", ErrMalformed, date.Format(contracts.RecordDateLayout), err)
		}
		r.Date = date.Format(contracts.RecordDateLayout)
		r.Status = contracts.HealthStatus(status)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(records)
	return records, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
