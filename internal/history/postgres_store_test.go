package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/pkg/config"
	"github.com/wonny/aegis-regime/pkg/database"
)

func TestPostgresStore(t *testing.T) {
	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := database.New(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.Migrate(ctx))

	store := NewPostgresStore(db.Pool)

	// 먼 미래 날짜로 기존 데이터와 분리
	base := time.Date(2099, 1, 5, 15, 40, 0, 0, time.UTC)
	first := assessment(1, contracts.RegimeBear)
	first.AsOf = base
	second := assessment(1, contracts.RegimeBull)
	second.AsOf = base.AddDate(0, 0, 1)

	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))
	require.NoError(t, store.Append(ctx, second)) // 멱등

	got, err := store.Recent(ctx, base.AddDate(0, 0, 2), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, contracts.RegimeBear, got[0].Regime)
	assert.Equal(t, contracts.RegimeBull, got[1].Regime)
	assert.Equal(t, second.Signals, got[1].Signals)

	// as_of 이전만
	got, err = store.Recent(ctx, second.AsOf, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].AsOf.Equal(base))

	rec := healthRecord("2099-01-06", 72)
	rec.Violations = []string{contracts.ViolationStrategyConflict}
	rec.ViolationCount = 1
	require.NoError(t, store.UpsertHealth(ctx, rec))
	rec.HealthScore = 88
	rec.Status = contracts.StatusFor(88)
	require.NoError(t, store.UpsertHealth(ctx, rec))

	records, err := store.ListHealth(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2099-01-06", records[0].Date)
	assert.Equal(t, 88, records[0].HealthScore)
	assert.Equal(t, []string{contracts.ViolationStrategyConflict}, records[0].Violations)
}
