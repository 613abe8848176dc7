package contracts

import (
	"math"
	"time"
)

// IndicatorSnapshot is the normalized market state supplied once per cycle
// ⭐ SSOT: 외부 수집기 → R0 분류기 입력
// nil 값은 "데이터 없음"을 의미하며 분류기는 추측하지 않음
type IndicatorSnapshot struct {
	Trend      *float64 `json:"trend"`
	Volatility *float64 `json:"volatility"`
	Breadth    *float64 `json:"breadth"`

	// VolatilityChange 단기 변동성 변화량 (선택)
	VolatilityChange *float64 `json:"volatility_change,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// MissingCategories returns the category names that are absent or NaN, in fixed order
func (s *IndicatorSnapshot) MissingCategories() []string {
	missing := make([]string, 0, 3)
	if absent(s.Trend) {
		missing = append(missing, "trend")
	}
	if absent(s.Volatility) {
		missing = append(missing, "volatility")
	}
	if absent(s.Breadth) {
		missing = append(missing, "breadth")
	}
	return missing
}

func absent(v *float64) bool {
	return v == nil || math.IsNaN(*v)
}

// IsComplete checks whether all three categories are present
func (s *IndicatorSnapshot) IsComplete() bool {
	return len(s.MissingCategories()) == 0
}

// Float returns a pointer to v, convenient for building snapshots
func Float(v float64) *float64 {
	return &v
}

// DimensionScores are the five raw health subscores (0~100 each)
// StrategyBehavior는 입력값이 아니라 전략 매트릭스 집계로 대체됨
type DimensionScores struct {
	DataIntegrity     int `json:"data_integrity"`
	SignalSanity      int `json:"signal_sanity"`
	StrategyBehavior  int `json:"strategy_behavior"`
	RegimeReliability int `json:"regime_reliability"`
	EvolutionSafety   int `json:"evolution_safety"`
}

// Validate checks that every subscore lies in [0, 100]
func (d DimensionScores) Validate() error {
	checks := []struct {
		field string
		value int
	}{
		{"data_integrity", d.DataIntegrity},
		{"signal_sanity", d.SignalSanity},
		{"strategy_behavior", d.StrategyBehavior},
		{"regime_reliability", d.RegimeReliability},
		{"evolution_safety", d.EvolutionSafety},
	}
	for _, c := range checks {
		if c.value < 0 || c.value > 100 {
			return &InvalidInputError{Field: c.field, Message: "must be in [0, 100]"}
		}
	}
	return nil
}
