package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/history"
	"github.com/wonny/aegis-regime/internal/scheduler"
	"github.com/wonny/aegis-regime/pkg/config"
	"github.com/wonny/aegis-regime/pkg/logger"
	"github.com/wonny/aegis-regime/pkg/redis"
)

const input = `{
  "snapshot": {"trend": 0.5, "volatility": 0.2, "breadth": 0.7, "timestamp": "2026-03-06T15:40:00Z"},
  "dimension_scores": {"data_integrity": 100, "signal_sanity": 100, "strategy_behavior": 0, "regime_reliability": 100, "evolution_safety": 100}
}`

type fakeRunner struct {
	calls int
	err   error
}

func (r *fakeRunner) RunCycle(_ context.Context, in contracts.CycleInput) (*contracts.CycleOutput, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &contracts.CycleOutput{CycleID: "c-1", Regime: contracts.RegimeAssessment{AsOf: in.Snapshot.Timestamp}}, nil
}

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cycle_input.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCycleJob_Run(t *testing.T) {
	runner := &fakeRunner{}
	job := NewCycleJob("0 40 15 * * 1-5", writeInput(t, input), runner, logger.Nop())

	assert.Equal(t, "regime_cycle", job.Name())
	assert.Equal(t, "0 40 15 * * 1-5", job.Schedule())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, runner.calls)
}

func TestCycleJob_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		path      func(t *testing.T) string
		runErr    error
		permanent bool
	}{
		{
			name:      "input not written yet",
			path:      func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.json") },
			permanent: false,
		},
		{
			name:      "malformed input",
			path:      func(t *testing.T) string { return writeInput(t, `{"snapshot": 1}`) },
			permanent: true,
		},
		{
			name:      "insufficient data",
			path:      func(t *testing.T) string { return writeInput(t, input) },
			runErr:    &contracts.InsufficientDataError{Missing: []string{"breadth"}},
			permanent: true,
		},
		{
			name:      "configuration fault",
			path:      func(t *testing.T) string { return writeInput(t, input) },
			runErr:    fmt.Errorf("R3 failed: %w", contracts.NewConfigurationFault("health", "weights")),
			permanent: true,
		},
		{
			name:      "storage failure",
			path:      func(t *testing.T) string { return writeInput(t, input) },
			runErr:    errors.New("connection refused"),
			permanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewCycleJob("@daily", tt.path(t), &fakeRunner{err: tt.runErr}, logger.Nop())

			err := job.Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.permanent, scheduler.IsPermanent(err))
		})
	}
}

func TestTrendJob_Run(t *testing.T) {
	ctx := context.Background()
	store, err := history.NewFileStore(t.TempDir(), 6)
	require.NoError(t, err)

	rc, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	job := NewTrendJob("@daily", store, redis.NewCache(rc, "test"), logger.Nop())

	// 빈 히스토리
	require.NoError(t, job.Run(ctx))

	for i, score := range []int{90, 80, 70} {
		require.NoError(t, store.UpsertHealth(ctx, contracts.HealthRecord{
			Date:        fmt.Sprintf("2026-03-0%d", i+1),
			HealthScore: score,
			Status:      contracts.StatusFor(score),
		}))
	}
	require.NoError(t, job.Run(ctx))
}

func TestJobsImplementInterface(t *testing.T) {
	var _ scheduler.Job = (*CycleJob)(nil)
	var _ scheduler.Job = (*TrendJob)(nil)
}
