package health

import (
	"fmt"
	"math"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/policy"
)

// Cap ceilings
const (
	LowConfidenceCap      = 70
	CollapseConfidenceCap = 50
)

const weightEpsilon = 1e-6

// Aggregator implements R3: health score aggregation
// ⭐ SSOT: 헬스 스코어 캡/위반 감사는 여기서만
type Aggregator struct {
	cfg policy.HealthPolicy
}

// NewAggregator creates a health aggregator
func NewAggregator(cfg policy.HealthPolicy) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate computes the capped health score of one cycle
// agg는 완료된 전략 집계 (StrategyBehavior 차원을 대체)
// extra: 사이클 단위 위반 (거부된 선언, 잘못된 히스토리, 중립 스냅샷)
func (a *Aggregator) Aggregate(
	scores contracts.DimensionScores,
	level contracts.ConfidenceLevel,
	agg contracts.StrategyAggregate,
	extra []contracts.Finding,
) (*contracts.HealthScore, error) {
	if err := a.checkConfig(); err != nil {
		return nil, err
	}
	if !level.Valid() {
		return nil, &contracts.InvalidInputError{Field: "confidence_level", Message: fmt.Sprintf("unknown level %q", level)}
	}

	scores.StrategyBehavior = agg.Score
	if err := scores.Validate(); err != nil {
		return nil, err
	}

	raw := a.raw(scores)
	h := &contracts.HealthScore{
		RawScore:     raw,
		CapsApplied:  []string{},
		Violations:   []string{},
		Explanations: []string{},
	}

	// 캡은 순수 상한 (min), 값을 바꾼 캡만 기록
	final := raw
	var violations []contracts.Finding
	switch level {
	case contracts.ConfidenceMedium:
		if reduced := max(final-a.cfg.MediumPenalty, 0); reduced < final {
			h.CapsApplied = append(h.CapsApplied, contracts.CapMediumConfidence)
			h.Explanations = append(h.Explanations,
				fmt.Sprintf("Medium regime confidence: health reduced by %d (from %d to %d)", final-reduced, final, reduced))
			final = reduced
		}
	case contracts.ConfidenceLow:
		if final > LowConfidenceCap {
			h.CapsApplied = append(h.CapsApplied, contracts.CapLowConfidence)
			h.Explanations = append(h.Explanations,
				fmt.Sprintf("Low regime confidence: health capped at %d (was %d)", LowConfidenceCap, final))
			final = LowConfidenceCap
		}
	case contracts.ConfidenceCollapse:
		if final > CollapseConfidenceCap {
			h.CapsApplied = append(h.CapsApplied, contracts.CapCollapseConfidence)
			h.Explanations = append(h.Explanations,
				fmt.Sprintf("Collapsed regime confidence: health capped at %d (was %d)", CollapseConfidenceCap, final))
			final = CollapseConfidenceCap
		}
		// 붕괴는 캡이 바인딩되지 않아도 항상 감사 기록
		violations = append(violations, contracts.Finding{
			Code:        contracts.ViolationRegimeCollapse,
			Explanation: "Regime confidence collapsed: regime output is unreliable and only DEFENSIVE strategies may stay enabled",
		})
	}

	violations = append(violations, agg.Findings...)
	violations = append(violations, extra...)
	for _, v := range violations {
		h.Violations = append(h.Violations, v.Code)
		h.Explanations = append(h.Explanations, v.Explanation)
	}

	h.Score = final
	h.Status = contracts.StatusFor(final)
	if h.Status == contracts.HealthCritical {
		h.SuppressRecommendations = true
		h.AlertRequired = true
	}

	if err := checkPostConditions(h); err != nil {
		return nil, err
	}
	return h, nil
}

// raw = round(Σ w_i · score_i)
func (a *Aggregator) raw(s contracts.DimensionScores) int {
	w := a.cfg.Weights
	sum := w.DataIntegrity*float64(s.DataIntegrity) +
		w.SignalSanity*float64(s.SignalSanity) +
		w.StrategyBehavior*float64(s.StrategyBehavior) +
		w.RegimeReliability*float64(s.RegimeReliability) +
		w.EvolutionSafety*float64(s.EvolutionSafety)
	return min(max(int(math.Round(sum)), 0), 100)
}

// checkConfig: 로드 시 검증과 별개로 집계 시점에도 재확인
func (a *Aggregator) checkConfig() error {
	if math.Abs(a.cfg.Weights.Sum()-1.0) > weightEpsilon {
		return contracts.NewConfigurationFault("health", "dimension weights sum to %.4f, expected 1.0", a.cfg.Weights.Sum())
	}
	if a.cfg.MediumPenalty < 0 {
		return contracts.NewConfigurationFault("health", "medium penalty %d would raise the score", a.cfg.MediumPenalty)
	}
	return nil
}

// checkPostConditions: 단조 비증가 및 설명 1:1 대응
func checkPostConditions(h *contracts.HealthScore) error {
	if h.Score > h.RawScore {
		return contracts.NewConfigurationFault("health", "final score %d exceeds raw score %d", h.Score, h.RawScore)
	}
	if h.Score < 0 || h.Score > 100 {
		return contracts.NewConfigurationFault("health", "final score %d outside [0, 100]", h.Score)
	}
	if len(h.Explanations) != h.ConstraintCount() {
		return contracts.NewConfigurationFault("health", "%d explanations for %d caps and violations",
			len(h.Explanations), h.ConstraintCount())
	}
	for i, e := range h.Explanations {
		if e == "" {
			return contracts.NewConfigurationFault("health", "explanation %d is empty", i)
		}
	}
	return nil
}
