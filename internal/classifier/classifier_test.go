package classifier

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/policy"
)

func testPolicy() policy.ClassifierPolicy {
	return policy.ClassifierPolicy{
		Trend:      policy.DirectionalCuts{Upper: 0.2, Lower: -0.2},
		Breadth:    policy.DirectionalCuts{Upper: 0.6, Lower: 0.4},
		Volatility: policy.VolatilityCuts{ElevatedMin: 0.5, HighMin: 0.8},
	}
}

func snapshot(trend, vol, breadth float64) contracts.IndicatorSnapshot {
	return contracts.IndicatorSnapshot{
		Trend:      contracts.Float(trend),
		Volatility: contracts.Float(vol),
		Breadth:    contracts.Float(breadth),
		Timestamp:  time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC),
	}
}

func TestClassify(t *testing.T) {
	c := New(NewThresholdPolicy(testPolicy()))

	tests := []struct {
		name    string
		snap    contracts.IndicatorSnapshot
		regime  contracts.Regime
		signals contracts.Signals
	}{
		{
			name:    "bullish trend with strong breadth",
			snap:    snapshot(0.5, 0.2, 0.7),
			regime:  contracts.RegimeBull,
			signals: contracts.Signals{Trend: contracts.TrendBullish, Volatility: contracts.VolatilityLow, Breadth: contracts.BreadthStrong},
		},
		{
			name:    "bearish trend with weak breadth",
			snap:    snapshot(-0.5, 0.9, 0.3),
			regime:  contracts.RegimeBear,
			signals: contracts.Signals{Trend: contracts.TrendBearish, Volatility: contracts.VolatilityHigh, Breadth: contracts.BreadthWeak},
		},
		{
			name:    "trend and breadth disagree",
			snap:    snapshot(0.5, 0.2, 0.3),
			regime:  contracts.RegimeSideways,
			signals: contracts.Signals{Trend: contracts.TrendBullish, Volatility: contracts.VolatilityLow, Breadth: contracts.BreadthWeak},
		},
		{
			name:    "neutral breadth",
			snap:    snapshot(0.5, 0.6, 0.5),
			regime:  contracts.RegimeSideways,
			signals: contracts.Signals{Trend: contracts.TrendBullish, Volatility: contracts.VolatilityElevated, Breadth: contracts.BreadthNeutral},
		},
		{
			name:    "cut points are inclusive",
			snap:    snapshot(0.2, 0.8, 0.6),
			regime:  contracts.RegimeBull,
			signals: contracts.Signals{Trend: contracts.TrendBullish, Volatility: contracts.VolatilityHigh, Breadth: contracts.BreadthStrong},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.snap)
			require.NoError(t, err)
			assert.Equal(t, tt.regime, got.Regime)
			assert.Equal(t, tt.signals, got.Signals)
			assert.Equal(t, tt.snap.Timestamp, got.AsOf)
		})
	}
}

func TestClassify_VolatilityNeverChangesLabel(t *testing.T) {
	c := New(NewThresholdPolicy(testPolicy()))

	for _, vol := range []float64{0.0, 0.5, 0.99} {
		got, err := c.Classify(snapshot(0.5, vol, 0.7))
		require.NoError(t, err)
		assert.Equal(t, contracts.RegimeBull, got.Regime, "volatility=%v", vol)
	}
}

func TestClassify_InsufficientData(t *testing.T) {
	c := New(NewThresholdPolicy(testPolicy()))

	snap := snapshot(0.5, 0.2, 0.7)
	snap.Volatility = nil
	snap.Breadth = nil

	_, err := c.Classify(snap)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientData))

	var dataErr *contracts.InsufficientDataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, []string{"volatility", "breadth"}, dataErr.Missing)
}

func TestClassify_CopiesVolatilityChange(t *testing.T) {
	c := New(NewThresholdPolicy(testPolicy()))

	snap := snapshot(0.5, 0.2, 0.7)
	snap.VolatilityChange = contracts.Float(0.3)

	got, err := c.Classify(snap)
	require.NoError(t, err)
	require.NotNil(t, got.VolatilityChange)
	assert.Equal(t, 0.3, *got.VolatilityChange)

	// 입력 스냅샷과 포인터 공유 안 함
	*snap.VolatilityChange = 0.9
	assert.Equal(t, 0.3, *got.VolatilityChange)
}

type invertedPolicy struct{ *ThresholdPolicy }

func (p invertedPolicy) Trend(v float64) contracts.TrendSignal {
	return p.ThresholdPolicy.Trend(-v)
}

func TestClassify_SwappableBucketPolicy(t *testing.T) {
	c := New(invertedPolicy{NewThresholdPolicy(testPolicy())})

	got, err := c.Classify(snapshot(-0.5, 0.2, 0.7))
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimeBull, got.Regime)
}
