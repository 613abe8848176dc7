package database

import (
	"context"
	"fmt"
)

// schema: 레짐 평가/헬스 히스토리 테이블 (멱등)
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS regime`,
	`CREATE TABLE IF NOT EXISTS regime.assessments (
		as_of            TIMESTAMPTZ PRIMARY KEY,
		regime           TEXT NOT NULL,
		confidence       DOUBLE PRECISION NOT NULL,
		confidence_level TEXT NOT NULL,
		unreliable       BOOLEAN NOT NULL,
		signals          JSONB NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS regime.health_history (
		record_date     DATE PRIMARY KEY,
		cycle_id        TEXT NOT NULL,
		health_score    INTEGER NOT NULL,
		status          TEXT NOT NULL,
		violation_count INTEGER NOT NULL,
		strategy_count  INTEGER NOT NULL,
		violations      JSONB NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the history tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
