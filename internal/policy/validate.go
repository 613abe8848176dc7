package policy

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/aegis-regime/internal/contracts"
)

const weightEpsilon = 1e-6

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, contracts.ErrConfigurationFault) match
func (e ValidationError) Is(target error) bool {
	return target == contracts.ErrConfigurationFault
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단). 개별 전략 선언 오류는 여기서 실패시키지 않음 (Declarations 참조)
func Validate(p *Policy) error {
	// === Meta ===
	if p.Meta.PolicyID == "" {
		return ValidationError{"meta.policy_id", "required"}
	}

	// === Classifier ===
	c := p.Classifier
	if c.Trend.Lower >= c.Trend.Upper {
		return ValidationError{"classifier.trend", "lower must be < upper"}
	}
	if c.Breadth.Lower >= c.Breadth.Upper {
		return ValidationError{"classifier.breadth", "lower must be < upper"}
	}
	if c.Volatility.ElevatedMin >= c.Volatility.HighMin {
		return ValidationError{"classifier.volatility", "elevated_min must be < high_min"}
	}

	// === Confidence ===
	cf := p.Confidence
	if err := validateWeightsSum([]float64{cf.AgreementWeight, cf.StabilityWeight}, 1.0, weightEpsilon); err != nil {
		return ValidationError{"confidence.weights", err.Error()}
	}
	if cf.AgreementWeight < 0 || cf.StabilityWeight < 0 {
		return ValidationError{"confidence.weights", "must be >= 0"}
	}
	// 부분 합의는 완전 합의(1.0)보다 낮아야 함
	partials := []struct {
		field string
		value float64
	}{
		{"confidence.neutral_credit", cf.NeutralCredit},
		{"confidence.sideways_directional_credit", cf.SidewaysDirectionalCredit},
		{"confidence.volatility_credit.low", cf.VolatilityCredit.Low},
		{"confidence.volatility_credit.elevated", cf.VolatilityCredit.Elevated},
		{"confidence.volatility_credit.high", cf.VolatilityCredit.High},
	}
	for _, pc := range partials {
		if pc.value < 0 || pc.value >= 1 {
			return ValidationError{pc.field, "must be in [0, 1)"}
		}
	}
	if cf.StabilityWindow < 1 {
		return ValidationError{"confidence.stability_window", "must be >= 1"}
	}
	if err := validatePctRange(cf.ShockPenalty, "confidence.shock_penalty"); err != nil {
		return err
	}
	if cf.ShockChangeThreshold <= 0 {
		return ValidationError{"confidence.shock_change_threshold", "must be > 0"}
	}

	// === Health ===
	w := p.Health.Weights
	for _, dw := range []float64{w.DataIntegrity, w.SignalSanity, w.StrategyBehavior, w.RegimeReliability, w.EvolutionSafety} {
		if dw < 0 {
			return ValidationError{"health.weights", "must be >= 0"}
		}
	}
	if math.Abs(w.Sum()-1.0) > weightEpsilon {
		return ValidationError{"health.weights", fmt.Sprintf("must sum to 1.00, got %.4f", w.Sum())}
	}
	// 음수 페널티 = 가산 보너스 → 단조 비증가 위반
	if p.Health.MediumPenalty < 0 {
		return ValidationError{"health.medium_penalty", "must be >= 0 (a negative penalty would raise the score)"}
	}
	if p.Health.MediumPenalty > 100 {
		return ValidationError{"health.medium_penalty", "must be <= 100"}
	}

	// === Strategy ===
	fw := p.Strategy.FallbackDegradedWeight
	if fw <= 0 || fw >= 0.5 {
		return ValidationError{"strategy.fallback_degraded_weight", "must be in (0, 0.5)"}
	}
	if p.Strategy.MaxDirectionalShare <= 0 || p.Strategy.MaxDirectionalShare > 1 {
		return ValidationError{"strategy.max_directional_share", "must be in (0, 1]"}
	}

	// === Data ===
	switch p.Data.MissingDataPolicy {
	case MissingDataAbort, MissingDataNeutral:
	default:
		return ValidationError{"data.missing_data_policy", "must be ABORT or NEUTRAL"}
	}

	// === Active strategies ===
	seen := make(map[string]bool, len(p.ActiveStrategies))
	for i, id := range p.ActiveStrategies {
		if id == "" {
			return ValidationError{fmt.Sprintf("active_strategies[%d]", i), "must not be empty"}
		}
		if seen[id] {
			return ValidationError{fmt.Sprintf("active_strategies[%d]", i), fmt.Sprintf("duplicate strategy id %q", id)}
		}
		seen[id] = true
	}

	return nil
}

// ValidateDeclaration checks one strategy declaration
// 실패한 선언은 거부되고 해당 전략은 undeclared로 취급됨 (사이클 실패 아님)
func ValidateDeclaration(d *contracts.StrategyDeclaration) error {
	if d.StrategyID == "" {
		return errors.New("strategy_id required")
	}
	if len(d.PreferredRegimes) == 0 {
		return errors.New("preferred_regimes must not be empty")
	}
	for _, r := range d.PreferredRegimes {
		if !r.Valid() {
			return fmt.Errorf("preferred_regimes: unknown regime %q", r)
		}
	}
	if !d.MinConfidence.Valid() {
		return fmt.Errorf("min_confidence: unknown level %q", d.MinConfidence)
	}
	if !d.RiskProfile.Valid() {
		return fmt.Errorf("risk_profile: unknown profile %q", d.RiskProfile)
	}
	if !d.FallbackMode.Valid() {
		return fmt.Errorf("fallback_mode: unknown mode %q", d.FallbackMode)
	}
	if d.BaseContribution < 0 || math.IsNaN(d.BaseContribution) {
		return errors.New("base_contribution must be >= 0")
	}
	for instrument, action := range d.Instruments {
		if !action.Valid() {
			return fmt.Errorf("instruments[%s]: unknown action %q", instrument, action)
		}
	}

	keys := make(map[string]bool, len(d.Matrix))
	for i, e := range d.Matrix {
		if !e.Regime.Valid() {
			return fmt.Errorf("matrix[%d]: unknown regime %q", i, e.Regime)
		}
		if !e.Confidence.Valid() {
			return fmt.Errorf("matrix[%d]: unknown confidence %q", i, e.Confidence)
		}
		if err := contracts.CheckWeight(e.State, e.Weight); err != nil {
			return fmt.Errorf("matrix[%d]: %w", i, err)
		}
		key := string(e.Regime) + "/" + string(e.Confidence)
		if keys[key] {
			return fmt.Errorf("matrix[%d]: duplicate entry for %s", i, key)
		}
		keys[key] = true
	}
	return nil
}

// Declarations splits the declared strategies into accepted (keyed by id) and rejected
func (p *Policy) Declarations() (map[string]*contracts.StrategyDeclaration, []Rejection) {
	accepted := make(map[string]*contracts.StrategyDeclaration, len(p.Strategies))
	var rejected []Rejection

	for i := range p.Strategies {
		d := &p.Strategies[i]
		if err := ValidateDeclaration(d); err != nil {
			rejected = append(rejected, Rejection{StrategyID: d.StrategyID, Reason: err.Error()})
			continue
		}
		if _, dup := accepted[d.StrategyID]; dup {
			rejected = append(rejected, Rejection{StrategyID: d.StrategyID, Reason: "duplicate strategy_id"})
			continue
		}
		accepted[d.StrategyID] = d
	}

	sort.Slice(rejected, func(i, j int) bool {
		return rejected[i].StrategyID < rejected[j].StrategyID
	})
	return accepted, rejected
}

// Warn checks recommended constraints (non-fatal)
func Warn(p *Policy) []Warning {
	var warnings []Warning

	if len(p.ActiveStrategies) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_ACTIVE_STRATEGIES",
			Message: "active_strategies is empty: strategy behavior dimension will score 0",
		})
	}

	accepted, rejected := p.Declarations()
	for _, r := range rejected {
		warnings = append(warnings, Warning{
			Code:    "REJECTED_DECLARATION",
			Message: fmt.Sprintf("strategy %q rejected: %s", r.StrategyID, r.Reason),
		})
	}

	hasDefensive := false
	for _, id := range p.ActiveStrategies {
		d, ok := accepted[id]
		if !ok {
			warnings = append(warnings, Warning{
				Code:    "UNDECLARED_ACTIVE_STRATEGY",
				Message: fmt.Sprintf("active strategy %q has no valid declaration and will be DISABLED", id),
			})
			continue
		}
		if d.RiskProfile == contracts.RiskDefensive {
			hasDefensive = true
		}
	}
	// COLLAPSE 시 DEFENSIVE 외 전부 비활성
	if len(p.ActiveStrategies) > 0 && !hasDefensive {
		warnings = append(warnings, Warning{
			Code:    "NO_DEFENSIVE_STRATEGY",
			Message: "no active DEFENSIVE strategy: every strategy is disabled under collapsed confidence",
		})
	}

	ids := make([]string, 0, len(accepted))
	for id := range accepted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, reason := range unreachableEntries(accepted[id]) {
			warnings = append(warnings, Warning{
				Code:    "UNREACHABLE_MATRIX_ENTRY",
				Message: fmt.Sprintf("strategy %q: %s", id, reason),
			})
		}
	}

	if p.Data.MissingDataPolicy == MissingDataNeutral {
		warnings = append(warnings, Warning{
			Code:    "NEUTRAL_DATA_POLICY",
			Message: "missing indicators are replaced by the neutral snapshot instead of aborting",
		})
	}

	if p.Confidence.StabilityWindow > 20 {
		warnings = append(warnings, Warning{
			Code:    "LONG_STABILITY_WINDOW",
			Message: "stability_window > 20: regime changes will take long to earn full stability credit",
		})
	}

	return warnings
}

// === Helper Functions ===

// unreachableEntries lists matrix rows that an earlier eligibility rule always pre-empts
// 순서: COLLAPSE(비 DEFENSIVE) → 선호 레짐 외 → 최소 신뢰도 미달 → 매트릭스
func unreachableEntries(d *contracts.StrategyDeclaration) []string {
	var out []string
	for _, e := range d.Matrix {
		cell := fmt.Sprintf("%s/%s", e.Regime, e.Confidence)
		switch {
		case e.Confidence == contracts.ConfidenceCollapse && d.RiskProfile != contracts.RiskDefensive:
			out = append(out, fmt.Sprintf("%s never applies: collapsed confidence disables non-DEFENSIVE strategies", cell))
		case !d.Prefers(e.Regime):
			out = append(out, fmt.Sprintf("%s never applies: %s is not a preferred regime", cell, e.Regime))
		case e.Confidence.Ordinal() < d.MinConfidence.Ordinal():
			out = append(out, fmt.Sprintf("%s never applies: below min_confidence %s", cell, d.MinConfidence))
		}
	}
	return out
}

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("must not be empty")
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}

// validatePctRange는 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
