package contracts

import (
	"fmt"
	"math"
)

// Regime is the discrete market posture for the tracked universe
// ⭐ SSOT: 레짐 라벨은 여기서만 정의
type Regime string

const (
	RegimeBull     Regime = "BULL"
	RegimeBear     Regime = "BEAR"
	RegimeSideways Regime = "SIDEWAYS"
)

// AllRegimes returns every regime label in canonical order
func AllRegimes() []Regime {
	return []Regime{RegimeBull, RegimeBear, RegimeSideways}
}

// Valid reports whether r is a known regime label
func (r Regime) Valid() bool {
	switch r {
	case RegimeBull, RegimeBear, RegimeSideways:
		return true
	}
	return false
}

// ParseRegime converts a string into a Regime
func ParseRegime(s string) (Regime, error) {
	r := Regime(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown regime %q", s)
	}
	return r, nil
}

// TrendSignal 추세 버킷
type TrendSignal string

const (
	TrendBullish TrendSignal = "bullish"
	TrendBearish TrendSignal = "bearish"
	TrendNeutral TrendSignal = "neutral"
)

// VolatilitySignal 변동성 버킷 (방향성 없음)
type VolatilitySignal string

const (
	VolatilityLow      VolatilitySignal = "low"
	VolatilityElevated VolatilitySignal = "elevated"
	VolatilityHigh     VolatilitySignal = "high"
)

// BreadthSignal 시장 폭 버킷
type BreadthSignal string

const (
	BreadthStrong  BreadthSignal = "strong"
	BreadthWeak    BreadthSignal = "weak"
	BreadthNeutral BreadthSignal = "neutral"
)

// Signals holds the per-category buckets of one classification
type Signals struct {
	Trend      TrendSignal      `json:"trend"`
	Volatility VolatilitySignal `json:"volatility"`
	Breadth    BreadthSignal    `json:"breadth"`
}

// ConfidenceLevel is the discretized regime confidence used for policy decisions
type ConfidenceLevel string

const (
	ConfidenceHigh     ConfidenceLevel = "HIGH"
	ConfidenceMedium   ConfidenceLevel = "MEDIUM"
	ConfidenceLow      ConfidenceLevel = "LOW"
	ConfidenceCollapse ConfidenceLevel = "COLLAPSE"
)

// Confidence level boundaries (inclusive lower bounds)
const (
	HighConfidenceMin   = 0.75
	MediumConfidenceMin = 0.55
	LowConfidenceMin    = 0.35
)

// LevelFor maps a confidence value onto its level
// 경계값은 하한 포함: 0.75 → HIGH, 0.749999 → MEDIUM. NaN은 COLLAPSE.
func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= HighConfidenceMin:
		return ConfidenceHigh
	case confidence >= MediumConfidenceMin:
		return ConfidenceMedium
	case confidence >= LowConfidenceMin:
		return ConfidenceLow
	default:
		return ConfidenceCollapse
	}
}

// Ordinal returns the position on HIGH(3) > MEDIUM(2) > LOW(1) > COLLAPSE(0), -1 if unknown
func (l ConfidenceLevel) Ordinal() int {
	switch l {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	case ConfidenceCollapse:
		return 0
	default:
		return -1
	}
}

// Valid reports whether l is a known confidence level
func (l ConfidenceLevel) Valid() bool {
	return l.Ordinal() >= 0
}

// AllConfidenceLevels returns levels from most to least confident
func AllConfidenceLevels() []ConfidenceLevel {
	return []ConfidenceLevel{ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceCollapse}
}

// ParseConfidenceLevel converts a string into a ConfidenceLevel
func ParseConfidenceLevel(s string) (ConfidenceLevel, error) {
	l := ConfidenceLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown confidence level %q", s)
	}
	return l, nil
}

// Clamp01 bounds v to [0, 1]; NaN becomes 0
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
