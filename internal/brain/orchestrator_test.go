package brain

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/history"
	"github.com/wonny/aegis-regime/internal/metrics"
	"github.com/wonny/aegis-regime/internal/policy"
	"github.com/wonny/aegis-regime/pkg/logger"
)

const policyPath = "../../config/regime/policy.yaml"

func loadPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, _, err := policy.Load(policyPath)
	require.NoError(t, err)
	return p
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 15, 40, 0, 0, time.UTC)
}

func bullSnapshot(d int) contracts.IndicatorSnapshot {
	return contracts.IndicatorSnapshot{
		Trend:      contracts.Float(0.5),
		Volatility: contracts.Float(0.2),
		Breadth:    contracts.Float(0.7),
		Timestamp:  day(d),
	}
}

func fullScores() contracts.DimensionScores {
	return contracts.DimensionScores{
		DataIntegrity:     100,
		SignalSanity:      100,
		StrategyBehavior:  100,
		RegimeReliability: 100,
		EvolutionSafety:   100,
	}
}

func bullHistory(n int) []contracts.RegimeAssessment {
	hist := make([]contracts.RegimeAssessment, n)
	for i := range hist {
		hist[i] = contracts.RegimeAssessment{
			Regime:          contracts.RegimeBull,
			Confidence:      0.9,
			ConfidenceLevel: contracts.ConfidenceHigh,
			AsOf:            day(i + 1),
		}
	}
	return hist
}

func newOrchestrator(t *testing.T, p *policy.Policy, hist contracts.RegimeHistory) *Orchestrator {
	t.Helper()
	if hist == nil {
		hist = history.NewBuffer(history.Capacity(p.Confidence.StabilityWindow))
	}
	o, err := NewOrchestrator(p, hist, logger.Nop())
	require.NoError(t, err)
	return o
}

func evaluation(t *testing.T, out *contracts.CycleOutput, id string) contracts.StrategyEvaluation {
	t.Helper()
	for _, e := range out.Strategies {
		if e.StrategyID == id {
			return e
		}
	}
	t.Fatalf("strategy %s not evaluated", id)
	return contracts.StrategyEvaluation{}
}

func TestEvaluate_BullHighConfidence(t *testing.T) {
	o := newOrchestrator(t, loadPolicy(t), nil)

	in := contracts.CycleInput{Snapshot: bullSnapshot(6), DimensionScores: fullScores()}
	out, err := o.Evaluate(context.Background(), in, bullHistory(5), false)
	require.NoError(t, err)

	assert.Equal(t, contracts.DataPathObserved, out.DataPath)
	assert.Equal(t, o.PolicyHash(), out.PolicyHash)
	assert.Equal(t, contracts.RegimeBull, out.Regime.Regime)
	assert.InDelta(t, 0.95, out.Regime.Confidence, 1e-9)
	assert.Equal(t, contracts.ConfidenceHigh, out.Regime.ConfidenceLevel)
	assert.False(t, out.Regime.Unreliable)

	// strategy_id 순 정렬
	require.Len(t, out.Strategies, 3)
	assert.Equal(t, "defensive_hedge", out.Strategies[0].StrategyID)
	assert.Equal(t, "mean_reversion", out.Strategies[1].StrategyID)
	assert.Equal(t, "trend_following", out.Strategies[2].StrategyID)

	tf := evaluation(t, out, "trend_following")
	assert.Equal(t, contracts.StateEnabled, tf.State)
	assert.Equal(t, 1.0, tf.Weight)

	hedge := evaluation(t, out, "defensive_hedge")
	assert.Equal(t, contracts.StateDegraded, hedge.State)
	assert.Contains(t, hedge.Reasons, "HIGH regime confidence")

	mr := evaluation(t, out, "mean_reversion")
	assert.Equal(t, contracts.StateDisabled, mr.State)

	// strategy_behavior = round(100·(40·1.0 + 30·0.1)/100) = 43
	// raw = 25 + 20 + 0.2·43 + 20 + 15 = 88.6 → 89
	assert.Equal(t, 89, out.Health.RawScore)
	assert.Equal(t, 89, out.Health.Score)
	assert.Equal(t, contracts.HealthHealthy, out.Health.Status)
	assert.Empty(t, out.Health.CapsApplied)
	assert.Empty(t, out.Health.Violations)
}

func TestEvaluate_Idempotent(t *testing.T) {
	o := newOrchestrator(t, loadPolicy(t), nil)
	ctx := context.Background()
	in := contracts.CycleInput{Snapshot: bullSnapshot(6), DimensionScores: fullScores()}

	first, err := o.Evaluate(ctx, in, bullHistory(5), false)
	require.NoError(t, err)
	second, err := o.Evaluate(ctx, in, bullHistory(5), false)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	// 입력이 바뀌면 cycle_id도 바뀜
	in.Snapshot.Trend = contracts.Float(0.6)
	third, err := o.Evaluate(ctx, in, bullHistory(5), false)
	require.NoError(t, err)
	assert.NotEqual(t, first.CycleID, third.CycleID)
}

func TestEvaluate_CollapseOverridesMatrix(t *testing.T) {
	o := newOrchestrator(t, loadPolicy(t), nil)

	// 추세 상승 + 시장 폭 약세 + 고변동성 → SIDEWAYS, 합의 낮음, 쇼크 페널티
	in := contracts.CycleInput{
		Snapshot: contracts.IndicatorSnapshot{
			Trend:      contracts.Float(0.5),
			Volatility: contracts.Float(0.9),
			Breadth:    contracts.Float(0.3),
			Timestamp:  day(6),
		},
		DimensionScores: fullScores(),
	}
	out, err := o.Evaluate(context.Background(), in, nil, false)
	require.NoError(t, err)

	assert.Equal(t, contracts.RegimeSideways, out.Regime.Regime)
	assert.Equal(t, contracts.ConfidenceCollapse, out.Regime.ConfidenceLevel)
	assert.True(t, out.Regime.Unreliable)

	for _, id := range []string{"trend_following", "mean_reversion"} {
		e := evaluation(t, out, id)
		assert.Equal(t, contracts.StateDisabled, e.State, id)
		assert.Equal(t, []string{"collapsed regime confidence"}, e.Reasons, id)
	}
	hedge := evaluation(t, out, "defensive_hedge")
	assert.Equal(t, contracts.StateDegraded, hedge.State)
	assert.Equal(t, 0.25, hedge.Weight)

	assert.LessOrEqual(t, out.Health.Score, 50)
	assert.LessOrEqual(t, out.Health.Score, out.Health.RawScore)
	assert.Contains(t, out.Health.Violations, contracts.ViolationRegimeCollapse)
	assert.Len(t, out.Health.Explanations, out.Health.ConstraintCount())
}

func TestEvaluate_MissingDataAbort(t *testing.T) {
	o := newOrchestrator(t, loadPolicy(t), nil)

	in := contracts.CycleInput{
		Snapshot:        contracts.IndicatorSnapshot{Trend: contracts.Float(0.5), Volatility: contracts.Float(0.2), Timestamp: day(6)},
		DimensionScores: fullScores(),
	}
	out, err := o.Evaluate(context.Background(), in, nil, false)

	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, contracts.StageClassify, se.Stage)
	assert.Equal(t, "insufficient_data", ErrorKind(err))
}

func TestEvaluate_MissingDataNeutral(t *testing.T) {
	p := loadPolicy(t)
	p.Data.MissingDataPolicy = policy.MissingDataNeutral
	o := newOrchestrator(t, p, nil)

	in := contracts.CycleInput{
		Snapshot:        contracts.IndicatorSnapshot{Trend: contracts.Float(0.5), Timestamp: day(6)},
		DimensionScores: fullScores(),
	}
	out, err := o.Evaluate(context.Background(), in, nil, false)
	require.NoError(t, err)

	assert.Equal(t, contracts.DataPathNeutralDefault, out.DataPath)
	assert.Equal(t, contracts.RegimeSideways, out.Regime.Regime)
	assert.Equal(t, day(6), out.Regime.AsOf)
	assert.Contains(t, out.Health.Violations, contracts.ViolationNeutralDefaultSnapshot)
	assert.Len(t, out.Health.Explanations, out.Health.ConstraintCount())
}

func TestEvaluate_MalformedDeclarationTreatedAsUndeclared(t *testing.T) {
	p := loadPolicy(t)
	for i := range p.Strategies {
		if p.Strategies[i].StrategyID == "mean_reversion" {
			p.Strategies[i].PreferredRegimes = nil
		}
	}
	o := newOrchestrator(t, p, nil)
	require.Len(t, o.Rejected(), 1)

	in := contracts.CycleInput{Snapshot: bullSnapshot(6), DimensionScores: fullScores()}
	out, err := o.Evaluate(context.Background(), in, bullHistory(5), false)
	require.NoError(t, err)

	mr := evaluation(t, out, "mean_reversion")
	assert.Equal(t, contracts.StateDisabled, mr.State)
	assert.Equal(t, []string{"undeclared strategy"}, mr.Reasons)
	assert.Contains(t, out.Health.Violations, contracts.ViolationMalformedDeclaration)
	// 위반은 점수를 바꾸지 않음
	assert.Equal(t, out.Health.RawScore, out.Health.Score)
}

func TestEvaluate_MalformedHistory(t *testing.T) {
	o := newOrchestrator(t, loadPolicy(t), nil)
	hist := bullHistory(5)
	hist[2].Regime = "UNKNOWN"

	in := contracts.CycleInput{Snapshot: bullSnapshot(6), DimensionScores: fullScores()}
	out, err := o.Evaluate(context.Background(), in, hist, false)
	require.NoError(t, err)

	// 안정성 0 → 0.6 · 0.9167 = 0.55
	assert.InDelta(t, 0.55, out.Regime.Confidence, 1e-9)
	assert.Contains(t, out.Health.Violations, contracts.ViolationMalformedHistory)
}

func TestEvaluate_ContributingDisabledStrategy(t *testing.T) {
	o := newOrchestrator(t, loadPolicy(t), nil)

	in := contracts.CycleInput{
		Snapshot:               bullSnapshot(6),
		DimensionScores:        fullScores(),
		ContributingStrategies: []string{"trend_following", "mean_reversion"},
	}
	out, err := o.Evaluate(context.Background(), in, bullHistory(5), false)
	require.NoError(t, err)

	assert.Equal(t, []string{contracts.ViolationDisabledContributing}, out.Health.Violations)
	assert.Equal(t, out.Health.RawScore, out.Health.Score)
}

type capturePublisher struct {
	outputs []*contracts.CycleOutput
	err     error
}

func (c *capturePublisher) Publish(_ context.Context, out *contracts.CycleOutput) error {
	c.outputs = append(c.outputs, out)
	return c.err
}

func TestRunCycle_PersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	p := loadPolicy(t)

	store, err := history.NewFileStore(t.TempDir(), history.Capacity(p.Confidence.StabilityWindow))
	require.NoError(t, err)
	for _, a := range bullHistory(5) {
		require.NoError(t, store.Append(ctx, a))
	}

	pub := &capturePublisher{}
	failing := &capturePublisher{err: errors.New("dashboard offline")}
	reg := metrics.NewRegistry()
	o := newOrchestrator(t, p, store).
		WithHealthHistory(store).
		WithMetrics(reg).
		AddPublisher(failing).
		AddPublisher(pub)

	in := contracts.CycleInput{Snapshot: bullSnapshot(6), DimensionScores: fullScores()}
	out, err := o.RunCycle(ctx, in)
	require.NoError(t, err)
	require.Len(t, pub.outputs, 1)
	assert.Equal(t, out.CycleID, pub.outputs[0].CycleID)

	// 같은 as_of 재실행 → 동일 출력
	again, err := o.RunCycle(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	records, err := store.ListHealth(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2026-03-06", records[0].Date)
	assert.Equal(t, out.CycleID, records[0].CycleID)
	assert.Equal(t, 3, records[0].StrategyCount)

	recent, err := store.Recent(ctx, day(31), 10)
	require.NoError(t, err)
	require.Len(t, recent, 6)
	assert.Equal(t, day(6), recent[5].AsOf)
}

func TestRunCycle_FailureRecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	o := newOrchestrator(t, loadPolicy(t), nil).WithMetrics(reg)

	in := contracts.CycleInput{Snapshot: contracts.IndicatorSnapshot{Timestamp: day(6)}, DimensionScores: fullScores()}
	out, err := o.RunCycle(context.Background(), in)

	require.Error(t, err)
	assert.Nil(t, out)
}

func TestNewOrchestrator_RejectsInvalidPolicy(t *testing.T) {
	p := loadPolicy(t)
	p.Health.Weights.DataIntegrity = 0.5

	_, err := NewOrchestrator(p, history.NewBuffer(6), logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfigurationFault))
}

func runDays(t *testing.T, o *Orchestrator, days ...int) map[int]*contracts.CycleOutput {
	t.Helper()
	outs := make(map[int]*contracts.CycleOutput, len(days))
	for _, d := range days {
		out, err := o.RunCycle(context.Background(), contracts.CycleInput{Snapshot: bullSnapshot(d), DimensionScores: fullScores()})
		require.NoError(t, err)
		outs[d] = out
	}
	return outs
}

func TestRunCycle_RerunEarlierDayAfterLaterDay(t *testing.T) {
	ctx := context.Background()
	p := loadPolicy(t)

	store, err := history.NewFileStore(t.TempDir(), history.Capacity(p.Confidence.StabilityWindow))
	require.NoError(t, err)
	o := newOrchestrator(t, p, store)

	first := runDays(t, o, 1, 2, 3, 4, 5, 6, 7)

	// 7일 이후 6일 재실행 → 원래 6일 결과와 동일
	rerun := runDays(t, o, 6)
	assert.Equal(t, first[6], rerun[6])

	recent, err := store.Recent(ctx, day(31), 10)
	require.NoError(t, err)
	days := make([]int, len(recent))
	for i, a := range recent {
		days[i] = a.AsOf.Day()
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, days)

	// 재실행 후 다음 사이클도 순서대로 실행한 경우와 동일
	next := runDays(t, o, 8)

	fresh, err := history.NewFileStore(t.TempDir(), history.Capacity(p.Confidence.StabilityWindow))
	require.NoError(t, err)
	inOrder := runDays(t, newOrchestrator(t, p, fresh), 1, 2, 3, 4, 5, 6, 7, 8)
	assert.Equal(t, inOrder[8], next[8])
}

// overlapHistory counts cycles that load history while another cycle has not yet persisted
type overlapHistory struct {
	*history.Buffer
	inflight atomic.Int32
	overlaps atomic.Int32
}

func (h *overlapHistory) Recent(ctx context.Context, before time.Time, k int) ([]contracts.RegimeAssessment, error) {
	if h.inflight.Add(1) > 1 {
		h.overlaps.Add(1)
	}
	time.Sleep(time.Millisecond)
	return h.Buffer.Recent(ctx, before, k)
}

func (h *overlapHistory) Append(ctx context.Context, a contracts.RegimeAssessment) error {
	defer h.inflight.Add(-1)
	return h.Buffer.Append(ctx, a)
}

func TestRunCycle_ConcurrentCyclesSerialized(t *testing.T) {
	p := loadPolicy(t)
	hist := &overlapHistory{Buffer: history.NewBuffer(history.Capacity(p.Confidence.StabilityWindow))}
	o := newOrchestrator(t, p, hist)

	var wg sync.WaitGroup
	for d := 1; d <= 8; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			_, err := o.RunCycle(context.Background(), contracts.CycleInput{Snapshot: bullSnapshot(d), DimensionScores: fullScores()})
			assert.NoError(t, err)
		}(d)
	}
	wg.Wait()

	assert.Zero(t, hist.overlaps.Load())

	recent, err := hist.Buffer.Recent(context.Background(), day(31), 10)
	require.NoError(t, err)
	require.Len(t, recent, 8)
	for i, a := range recent {
		assert.Equal(t, i+1, a.AsOf.Day())
	}
}
