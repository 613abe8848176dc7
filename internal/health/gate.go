package health

import (
	"fmt"

	"github.com/wonny/aegis-regime/internal/contracts"
)

// GateOutcome 배포/CI 게이트 판정
type GateOutcome string

const (
	GatePass     GateOutcome = "PASS"
	GateWarn     GateOutcome = "WARN"
	GateWarnHold GateOutcome = "WARN_HOLD_BIAS"
	GateFail     GateOutcome = "FAIL"
)

const gateWarnMin = 70

// GateResult is the gate decision for one health score
type GateResult struct {
	Outcome GateOutcome `json:"outcome"`
	Score   int         `json:"health_score"`
	Message string      `json:"message"`
}

// Passed reports whether the gate lets the run continue
func (g GateResult) Passed() bool {
	return g.Outcome != GateFail
}

// Gate maps a health score onto a gate outcome
// ≥85 통과, 70~84 경고, 50~69 경고 + HOLD 편향, <50 실패
func Gate(score int) GateResult {
	switch {
	case score >= contracts.HealthyMin:
		return GateResult{GatePass, score, fmt.Sprintf("Health score %d: normal success.", score)}
	case score >= gateWarnMin:
		return GateResult{GateWarn, score, fmt.Sprintf("Health score %d: success with warning.", score)}
	case score >= contracts.DegradedMin:
		return GateResult{GateWarnHold, score, fmt.Sprintf("Health score %d: success with warning; HOLD bias should already be applied.", score)}
	default:
		return GateResult{GateFail, score, fmt.Sprintf("Health score %d: below %d, failing.", score, contracts.DegradedMin)}
	}
}
