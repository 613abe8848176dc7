package contracts

import "time"

// Cycle Stage 정의 (SSOT)
// 모든 로그, 히스토리 row에서 이 상수를 사용해야 함
//
// 사이클 흐름:
//   R0 → R1 → R2 → R3
//   Classify  Confidence  Strategy  Health

// Stage represents a cycle stage
type Stage string

const (
	// StageClassify R0: 레짐 분류
	// 위치: internal/classifier/
	StageClassify Stage = "R0_CLASSIFY"

	// StageConfidence R1: 신뢰도 산출
	// 위치: internal/confidence/
	StageConfidence Stage = "R1_CONFIDENCE"

	// StageStrategy R2: 전략 적격성 매트릭스
	// 위치: internal/strategy/
	StageStrategy Stage = "R2_STRATEGY"

	// StageHealth R3: 헬스 스코어 집계
	// 위치: internal/health/
	StageHealth Stage = "R3_HEALTH"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "R0")
func (s Stage) ShortName() string {
	switch s {
	case StageClassify:
		return "R0"
	case StageConfidence:
		return "R1"
	case StageStrategy:
		return "R2"
	case StageHealth:
		return "R3"
	default:
		return "UNKNOWN"
	}
}

// AllStages returns all cycle stages in order
func AllStages() []Stage {
	return []Stage{StageClassify, StageConfidence, StageStrategy, StageHealth}
}

// Classification is the R0 output: label plus signal buckets
type Classification struct {
	Regime           Regime    `json:"regime"`
	Signals          Signals   `json:"signals"`
	VolatilityChange *float64  `json:"volatility_change,omitempty"`
	AsOf             time.Time `json:"as_of"`
}

// RegimeAssessment is the immutable per-cycle regime result shared downstream
// ⭐ SSOT: R1 → R2/R3 전달
type RegimeAssessment struct {
	Regime          Regime          `json:"regime"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	// Unreliable은 COLLAPSE일 때 true (소비자가 임계값을 직접 판단하지 않도록)
	Unreliable bool      `json:"unreliable"`
	Signals    Signals   `json:"signals"`
	AsOf       time.Time `json:"as_of"`
}

// NewRegimeAssessment derives level and reliability from confidence
func NewRegimeAssessment(c Classification, confidence float64) RegimeAssessment {
	level := LevelFor(confidence)
	return RegimeAssessment{
		Regime:          c.Regime,
		Confidence:      confidence,
		ConfidenceLevel: level,
		Unreliable:      level == ConfidenceCollapse,
		Signals:         c.Signals,
		AsOf:            c.AsOf,
	}
}

// DataPath records which snapshot the cycle ran on
type DataPath string

const (
	DataPathObserved       DataPath = "observed"
	DataPathNeutralDefault DataPath = "neutral_default"
)

// CycleInput bundles everything one cycle consumes
type CycleInput struct {
	Snapshot        IndicatorSnapshot `json:"snapshot"`
	DimensionScores DimensionScores   `json:"dimension_scores"`
	// ContributingStrategies 외부 스코어러가 이번 사이클에 사용한 전략 ID
	ContributingStrategies []string `json:"contributing_strategies,omitempty"`
}

// CycleOutput is the complete, serializable result of one cycle
// 동일 입력 → 바이트 단위 동일 출력 (cycle_id도 입력에서 파생)
type CycleOutput struct {
	CycleID    string               `json:"cycle_id"`
	PolicyHash string               `json:"policy_hash"`
	DataPath   DataPath             `json:"data_path"`
	Regime     RegimeAssessment     `json:"regime"`
	Health     HealthScore          `json:"health"`
	Strategies []StrategyEvaluation `json:"strategies"`
}
