package policy

import (
	"time"

	"github.com/wonny/aegis-regime/internal/contracts"
)

// Policy는 레짐 코어의 전체 설정
// 컷 포인트/가중치/상수는 정책이며 코어 로직이 아님 (교체 가능)
type Policy struct {
	Meta             Meta                            `yaml:"meta" json:"meta"`
	Classifier       ClassifierPolicy                `yaml:"classifier" json:"classifier"`
	Confidence       ConfidencePolicy                `yaml:"confidence" json:"confidence"`
	Health           HealthPolicy                    `yaml:"health" json:"health"`
	Strategy         StrategyPolicy                  `yaml:"strategy" json:"strategy"`
	Data             DataPolicy                      `yaml:"data" json:"data"`
	ActiveStrategies []string                        `yaml:"active_strategies" json:"active_strategies"`
	Strategies       []contracts.StrategyDeclaration `yaml:"strategies" json:"strategies"`
}

// Meta 메타 정보
type Meta struct {
	PolicyID string `yaml:"policy_id" json:"policy_id"`
	Version  string `yaml:"version" json:"version"`
}

// ClassifierPolicy R0: 카테고리별 버킷 컷 포인트
type ClassifierPolicy struct {
	Trend      DirectionalCuts `yaml:"trend" json:"trend"`
	Breadth    DirectionalCuts `yaml:"breadth" json:"breadth"`
	Volatility VolatilityCuts  `yaml:"volatility" json:"volatility"`
}

// DirectionalCuts value >= Upper → 상승 버킷, value <= Lower → 하락 버킷, 그 외 neutral
type DirectionalCuts struct {
	Upper float64 `yaml:"upper" json:"upper"`
	Lower float64 `yaml:"lower" json:"lower"`
}

// VolatilityCuts value >= HighMin → high, value >= ElevatedMin → elevated, 그 외 low
type VolatilityCuts struct {
	ElevatedMin float64 `yaml:"elevated_min" json:"elevated_min"`
	HighMin     float64 `yaml:"high_min" json:"high_min"`
}

// ConfidencePolicy R1: 합의/안정성/충격 페널티 상수
type ConfidencePolicy struct {
	AgreementWeight           float64          `yaml:"agreement_weight" json:"agreement_weight"`
	StabilityWeight           float64          `yaml:"stability_weight" json:"stability_weight"`
	NeutralCredit             float64          `yaml:"neutral_credit" json:"neutral_credit"`
	SidewaysDirectionalCredit float64          `yaml:"sideways_directional_credit" json:"sideways_directional_credit"`
	VolatilityCredit          VolatilityCredit `yaml:"volatility_credit" json:"volatility_credit"`
	StabilityWindow           int              `yaml:"stability_window" json:"stability_window"` // K
	ShockPenalty              float64          `yaml:"shock_penalty" json:"shock_penalty"`
	ShockChangeThreshold      float64          `yaml:"shock_change_threshold" json:"shock_change_threshold"`
}

// VolatilityCredit 변동성 버킷별 부분 합의 크레딧 (모두 1 미만)
type VolatilityCredit struct {
	Low      float64 `yaml:"low" json:"low"`
	Elevated float64 `yaml:"elevated" json:"elevated"`
	High     float64 `yaml:"high" json:"high"`
}

// For returns the credit for a volatility bucket
func (v VolatilityCredit) For(s contracts.VolatilitySignal) float64 {
	switch s {
	case contracts.VolatilityLow:
		return v.Low
	case contracts.VolatilityElevated:
		return v.Elevated
	default:
		return v.High
	}
}

// HealthPolicy R3: 차원 가중치 및 MEDIUM 페널티
type HealthPolicy struct {
	Weights       DimensionWeights `yaml:"weights" json:"weights"`
	MediumPenalty int              `yaml:"medium_penalty" json:"medium_penalty"`
}

// DimensionWeights 5개 차원 가중치 (합 = 1.0)
type DimensionWeights struct {
	DataIntegrity     float64 `yaml:"data_integrity" json:"data_integrity"`
	SignalSanity      float64 `yaml:"signal_sanity" json:"signal_sanity"`
	StrategyBehavior  float64 `yaml:"strategy_behavior" json:"strategy_behavior"`
	RegimeReliability float64 `yaml:"regime_reliability" json:"regime_reliability"`
	EvolutionSafety   float64 `yaml:"evolution_safety" json:"evolution_safety"`
}

// Sum returns the total weight
func (w DimensionWeights) Sum() float64 {
	return w.DataIntegrity + w.SignalSanity + w.StrategyBehavior + w.RegimeReliability + w.EvolutionSafety
}

// StrategyPolicy R2: 폴백 가중치 및 집중도 한도
type StrategyPolicy struct {
	FallbackDegradedWeight float64 `yaml:"fallback_degraded_weight" json:"fallback_degraded_weight"`
	MaxDirectionalShare    float64 `yaml:"max_directional_share" json:"max_directional_share"`
}

// MissingDataPolicy 지표 누락 시 사이클 처리 방식
type MissingDataPolicy string

const (
	MissingDataAbort   MissingDataPolicy = "ABORT"
	MissingDataNeutral MissingDataPolicy = "NEUTRAL"
)

// DataPolicy 누락 데이터 처리
type DataPolicy struct {
	MissingDataPolicy MissingDataPolicy `yaml:"missing_data_policy" json:"missing_data_policy"`
	NeutralSnapshot   NeutralSnapshot   `yaml:"neutral_snapshot" json:"neutral_snapshot"`
}

// NeutralSnapshot is substituted when MissingDataPolicy is NEUTRAL
type NeutralSnapshot struct {
	Trend      float64 `yaml:"trend" json:"trend"`
	Volatility float64 `yaml:"volatility" json:"volatility"`
	Breadth    float64 `yaml:"breadth" json:"breadth"`
}

// Snapshot builds the substitute IndicatorSnapshot stamped with ts
func (n NeutralSnapshot) Snapshot(ts time.Time) contracts.IndicatorSnapshot {
	return contracts.IndicatorSnapshot{
		Trend:      contracts.Float(n.Trend),
		Volatility: contracts.Float(n.Volatility),
		Breadth:    contracts.Float(n.Breadth),
		Timestamp:  ts,
	}
}

// Rejection 검증 실패로 제외된 전략 선언
type Rejection struct {
	StrategyID string `json:"strategy_id"`
	Reason     string `json:"reason"`
}
