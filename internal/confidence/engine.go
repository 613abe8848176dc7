package confidence

import (
	"math"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/policy"
)

// Result is the R1 output with its components kept for the audit trail
type Result struct {
	Confidence       float64                   `json:"confidence"`
	Level            contracts.ConfidenceLevel `json:"confidence_level"`
	Agreement        float64                   `json:"agreement"`
	Stability        float64                   `json:"stability"`
	ShockPenalty     float64                   `json:"shock_penalty"`
	HistoryMalformed bool                      `json:"history_malformed"`
}

// Engine implements R1: confidence scoring
// ⭐ SSOT: 신뢰도 산출은 여기서만. 히스토리는 파라미터로 받고 보관하지 않음
type Engine struct {
	cfg policy.ConfidencePolicy
}

// New creates a confidence engine
func New(cfg policy.ConfidencePolicy) *Engine {
	return &Engine{cfg: cfg}
}

// Window returns K, the number of prior assessments the engine consults
func (e *Engine) Window() int {
	return e.cfg.StabilityWindow
}

// Score computes confidence for a classification given prior assessments (oldest first)
// 실패하지 않음: 잘못된 히스토리는 빈 히스토리로 취급
func (e *Engine) Score(c contracts.Classification, history []contracts.RegimeAssessment) Result {
	agreement := e.agreement(c.Regime, c.Signals)
	stability, malformed := e.stability(c.Regime, history)
	penalty := e.shockPenalty(c)

	// clamp는 반드시 마지막 연산
	confidence := contracts.Clamp01(e.cfg.AgreementWeight*agreement + e.cfg.StabilityWeight*stability - penalty)

	return Result{
		Confidence:       confidence,
		Level:            contracts.LevelFor(confidence),
		Agreement:        agreement,
		Stability:        stability,
		ShockPenalty:     penalty,
		HistoryMalformed: malformed,
	}
}

// agreement = 세 카테고리 크레딧 평균
func (e *Engine) agreement(regime contracts.Regime, s contracts.Signals) float64 {
	trend := e.directionalCredit(regime,
		s.Trend == contracts.TrendBullish,
		s.Trend == contracts.TrendBearish)
	breadth := e.directionalCredit(regime,
		s.Breadth == contracts.BreadthStrong,
		s.Breadth == contracts.BreadthWeak)
	volatility := e.cfg.VolatilityCredit.For(s.Volatility)

	return (trend + breadth + volatility) / 3
}

func (e *Engine) directionalCredit(regime contracts.Regime, up, down bool) float64 {
	neutral := !up && !down

	switch regime {
	case contracts.RegimeBull:
		if up {
			return 1.0
		}
	case contracts.RegimeBear:
		if down {
			return 1.0
		}
	default:
		// SIDEWAYS: 중립 버킷이 완전 합의
		if neutral {
			return 1.0
		}
		return e.cfg.SidewaysDirectionalCredit
	}

	if neutral {
		return e.cfg.NeutralCredit
	}
	return 0.0
}

// stability = 최근 K개 중 현재 라벨과 같은 연속 구간 길이 / K
func (e *Engine) stability(current contracts.Regime, history []contracts.RegimeAssessment) (float64, bool) {
	k := e.cfg.StabilityWindow
	if k <= 0 {
		return 0, false
	}

	for _, a := range history {
		if !a.Regime.Valid() {
			return 0, true
		}
	}

	if len(history) > k {
		history = history[len(history)-k:]
	}

	run := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Regime != current {
			break
		}
		run++
	}
	return float64(run) / float64(k), false
}

// shockPenalty: 변동성이 신뢰도를 낮추는 유일한 경로
func (e *Engine) shockPenalty(c contracts.Classification) float64 {
	if c.Signals.Volatility == contracts.VolatilityHigh {
		return e.cfg.ShockPenalty
	}
	if c.VolatilityChange != nil && math.Abs(*c.VolatilityChange) > e.cfg.ShockChangeThreshold {
		return e.cfg.ShockPenalty
	}
	return 0
}
