package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/policy"
)

func testMatrix() *Matrix {
	return NewMatrix(policy.StrategyPolicy{
		FallbackDegradedWeight: 0.25,
		MaxDirectionalShare:    0.8,
	})
}

func trendFollowing(floor contracts.ConfidenceLevel) *contracts.StrategyDeclaration {
	return &contracts.StrategyDeclaration{
		StrategyID:       "trend_following",
		PreferredRegimes: []contracts.Regime{contracts.RegimeBull, contracts.RegimeSideways},
		MinConfidence:    floor,
		RiskProfile:      contracts.RiskAggressive,
		FallbackMode:     contracts.FallbackDegraded,
		BaseContribution: 40,
		Instruments:      map[string]contracts.Action{"KOSPI200": contracts.ActionLong},
		Matrix: []contracts.MatrixEntry{
			{Regime: contracts.RegimeBull, Confidence: contracts.ConfidenceHigh, State: contracts.StateEnabled, Weight: 1.0},
			{Regime: contracts.RegimeBull, Confidence: contracts.ConfidenceMedium, State: contracts.StateEnabled, Weight: 0.7},
			{Regime: contracts.RegimeBull, Confidence: contracts.ConfidenceLow, State: contracts.StateDegraded, Weight: 0.3},
			{Regime: contracts.RegimeBull, Confidence: contracts.ConfidenceCollapse, State: contracts.StateEnabled, Weight: 1.0},
		},
	}
}

func hedge() *contracts.StrategyDeclaration {
	return &contracts.StrategyDeclaration{
		StrategyID:       "defensive_hedge",
		PreferredRegimes: []contracts.Regime{contracts.RegimeBull, contracts.RegimeBear, contracts.RegimeSideways},
		MinConfidence:    contracts.ConfidenceCollapse,
		RiskProfile:      contracts.RiskDefensive,
		FallbackMode:     contracts.FallbackDegraded,
		BaseContribution: 30,
		Instruments:      map[string]contracts.Action{"KOSPI200": contracts.ActionShort},
		Matrix: []contracts.MatrixEntry{
			{Regime: contracts.RegimeBull, Confidence: contracts.ConfidenceHigh, State: contracts.StateEnabled, Weight: 1.0},
		},
	}
}

func TestEvaluate_Scenarios(t *testing.T) {
	m := testMatrix()

	t.Run("BULL HIGH enables trend following at full weight", func(t *testing.T) {
		eval, err := m.Evaluate("trend_following", trendFollowing(contracts.ConfidenceMedium), contracts.RegimeBull, contracts.ConfidenceHigh)
		require.NoError(t, err)
		assert.Equal(t, contracts.StateEnabled, eval.State)
		assert.Equal(t, 1.0, eval.Weight)
		assert.True(t, eval.Enabled)
		assert.Empty(t, eval.Reasons)
	})

	t.Run("BULL LOW degrades per matrix", func(t *testing.T) {
		// floor LOW: MEDIUM floor would short-circuit before the matrix
		eval, err := m.Evaluate("trend_following", trendFollowing(contracts.ConfidenceLow), contracts.RegimeBull, contracts.ConfidenceLow)
		require.NoError(t, err)
		assert.Equal(t, contracts.StateDegraded, eval.State)
		assert.Equal(t, 0.3, eval.Weight)
		assert.True(t, eval.Enabled)
		assert.Contains(t, eval.Reasons, "LOW regime confidence")
	})

	t.Run("COLLAPSE disables aggressive strategy over matrix entry", func(t *testing.T) {
		eval, err := m.Evaluate("trend_following", trendFollowing(contracts.ConfidenceCollapse), contracts.RegimeBull, contracts.ConfidenceCollapse)
		require.NoError(t, err)
		assert.Equal(t, contracts.StateDisabled, eval.State)
		assert.Equal(t, 0.0, eval.Weight)
		assert.False(t, eval.Enabled)
		assert.Equal(t, []string{ReasonCollapse}, eval.Reasons)
	})
}

func TestEvaluate_Precedence(t *testing.T) {
	m := testMatrix()

	tests := []struct {
		name   string
		decl   *contracts.StrategyDeclaration
		regime contracts.Regime
		level  contracts.ConfidenceLevel
		state  contracts.StrategyState
		weight float64
		reason string
	}{
		{
			name:   "undeclared short-circuits everything",
			decl:   nil,
			regime: contracts.RegimeBull,
			level:  contracts.ConfidenceHigh,
			state:  contracts.StateDisabled,
			reason: ReasonUndeclared,
		},
		{
			name:   "collapse wins over preferred-set check",
			decl:   trendFollowing(contracts.ConfidenceCollapse),
			regime: contracts.RegimeBear,
			level:  contracts.ConfidenceCollapse,
			state:  contracts.StateDisabled,
			reason: ReasonCollapse,
		},
		{
			name:   "regime outside preferred set",
			decl:   trendFollowing(contracts.ConfidenceLow),
			regime: contracts.RegimeBear,
			level:  contracts.ConfidenceHigh,
			state:  contracts.StateDisabled,
			reason: ReasonNotPreferred,
		},
		{
			name:   "confidence below floor wins over matrix",
			decl:   trendFollowing(contracts.ConfidenceMedium),
			regime: contracts.RegimeBull,
			level:  contracts.ConfidenceLow,
			state:  contracts.StateDisabled,
			reason: ReasonBelowFloor,
		},
		{
			name:   "floor is inclusive",
			decl:   trendFollowing(contracts.ConfidenceMedium),
			regime: contracts.RegimeBull,
			level:  contracts.ConfidenceMedium,
			state:  contracts.StateEnabled,
			weight: 0.7,
			reason: "MEDIUM regime confidence",
		},
		{
			name:   "degraded fallback",
			decl:   trendFollowing(contracts.ConfidenceLow),
			regime: contracts.RegimeSideways,
			level:  contracts.ConfidenceHigh,
			state:  contracts.StateDegraded,
			weight: 0.25,
			reason: ReasonFallbackApplied,
		},
		{
			name:   "defensive strategy survives collapse",
			decl:   hedge(),
			regime: contracts.RegimeBear,
			level:  contracts.ConfidenceCollapse,
			state:  contracts.StateDegraded,
			weight: 0.25,
			reason: "COLLAPSE regime confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := m.Evaluate("s", tt.decl, tt.regime, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.state, eval.State)
			assert.Equal(t, tt.weight, eval.Weight)
			assert.Contains(t, eval.Reasons, tt.reason)
		})
	}
}

func TestEvaluate_DisabledFallback(t *testing.T) {
	m := testMatrix()

	decl := trendFollowing(contracts.ConfidenceLow)
	decl.FallbackMode = contracts.FallbackDisabled

	eval, err := m.Evaluate("trend_following", decl, contracts.RegimeSideways, contracts.ConfidenceMedium)
	require.NoError(t, err)
	assert.Equal(t, contracts.StateDisabled, eval.State)
	assert.Equal(t, 0.0, eval.Weight)
	assert.Equal(t, []string{ReasonFallbackApplied, "MEDIUM regime confidence"}, eval.Reasons)
}

func TestEvaluate_InvalidMatrixEntryIsConfigurationFault(t *testing.T) {
	m := testMatrix()

	decl := trendFollowing(contracts.ConfidenceLow)
	decl.Matrix[0].State = contracts.StateDegraded // weight 1.0

	_, err := m.Evaluate("trend_following", decl, contracts.RegimeBull, contracts.ConfidenceHigh)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfigurationFault))
}

func TestEvaluate_CollapseDisablesEveryNonDefensive(t *testing.T) {
	m := testMatrix()

	for _, profile := range []contracts.RiskProfile{contracts.RiskAggressive, contracts.RiskNeutral} {
		for _, regime := range contracts.AllRegimes() {
			decl := trendFollowing(contracts.ConfidenceCollapse)
			decl.RiskProfile = profile
			decl.PreferredRegimes = contracts.AllRegimes()

			eval, err := m.Evaluate("s", decl, regime, contracts.ConfidenceCollapse)
			require.NoError(t, err)
			assert.Equal(t, contracts.StateDisabled, eval.State, "%s/%s", profile, regime)
		}
	}
}

func TestEvaluate_StateWeightEquivalence(t *testing.T) {
	m := testMatrix()
	decls := []*contracts.StrategyDeclaration{nil, trendFollowing(contracts.ConfidenceLow), trendFollowing(contracts.ConfidenceHigh), hedge()}

	for _, d := range decls {
		for _, regime := range contracts.AllRegimes() {
			for _, level := range contracts.AllConfidenceLevels() {
				eval, err := m.Evaluate("s", d, regime, level)
				require.NoError(t, err)

				switch eval.State {
				case contracts.StateDisabled:
					assert.Equal(t, 0.0, eval.Weight)
				case contracts.StateDegraded:
					assert.Greater(t, eval.Weight, 0.0)
					assert.Less(t, eval.Weight, 0.5)
				case contracts.StateEnabled:
					assert.GreaterOrEqual(t, eval.Weight, 0.5)
				}
				if !eval.IsFullWeight() {
					assert.NotEmpty(t, eval.Reasons)
				}
			}
		}
	}
}

func TestEvaluateAll_SortedAndDeterministic(t *testing.T) {
	m := testMatrix()
	decls := map[string]*contracts.StrategyDeclaration{
		"trend_following": trendFollowing(contracts.ConfidenceMedium),
		"defensive_hedge": hedge(),
	}
	ids := []string{"trend_following", "zeta_unknown", "defensive_hedge"}

	first, err := m.EvaluateAll(context.Background(), ids, decls, contracts.RegimeBull, contracts.ConfidenceHigh)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "defensive_hedge", first[0].StrategyID)
	assert.Equal(t, "trend_following", first[1].StrategyID)
	assert.Equal(t, "zeta_unknown", first[2].StrategyID)
	assert.Equal(t, []string{ReasonUndeclared}, first[2].Reasons)

	for i := 0; i < 20; i++ {
		again, err := m.EvaluateAll(context.Background(), ids, decls, contracts.RegimeBull, contracts.ConfidenceHigh)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEvaluateAll_FailsAsUnit(t *testing.T) {
	m := testMatrix()
	bad := trendFollowing(contracts.ConfidenceLow)
	bad.Matrix[0].Weight = 0.2 // ENABLED below 0.5

	decls := map[string]*contracts.StrategyDeclaration{
		"trend_following": bad,
		"defensive_hedge": hedge(),
	}

	evals, err := m.EvaluateAll(context.Background(), []string{"defensive_hedge", "trend_following"}, decls, contracts.RegimeBull, contracts.ConfidenceHigh)
	require.Error(t, err)
	assert.Nil(t, evals)
}
