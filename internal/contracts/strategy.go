package contracts

import (
	"fmt"
	"math"
)

// RiskProfile 전략 위험 성향
type RiskProfile string

const (
	RiskAggressive RiskProfile = "AGGRESSIVE"
	RiskNeutral    RiskProfile = "NEUTRAL"
	RiskDefensive  RiskProfile = "DEFENSIVE"
)

// Valid reports whether p is a known risk profile
func (p RiskProfile) Valid() bool {
	return p == RiskAggressive || p == RiskNeutral || p == RiskDefensive
}

// FallbackMode applies when no matrix entry matches
type FallbackMode string

const (
	FallbackDisabled FallbackMode = "DISABLED"
	FallbackDegraded FallbackMode = "DEGRADED"
)

// Valid reports whether m is a known fallback mode
func (m FallbackMode) Valid() bool {
	return m == FallbackDisabled || m == FallbackDegraded
}

// StrategyState 전략 활성 상태
type StrategyState string

const (
	StateEnabled  StrategyState = "ENABLED"
	StateDegraded StrategyState = "DEGRADED"
	StateDisabled StrategyState = "DISABLED"
)

// Valid reports whether s is a known state
func (s StrategyState) Valid() bool {
	return s == StateEnabled || s == StateDegraded || s == StateDisabled
}

// Action is a strategy's preferred direction on an instrument
type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
)

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	return a == ActionLong || a == ActionShort
}

// Opposes reports whether a and b are directly opposing actions
func (a Action) Opposes(b Action) bool {
	return (a == ActionLong && b == ActionShort) || (a == ActionShort && b == ActionLong)
}

// MatrixEntry is one (regime, confidence level) → (state, weight) row of a strategy matrix
type MatrixEntry struct {
	Regime     Regime          `yaml:"regime" json:"regime"`
	Confidence ConfidenceLevel `yaml:"confidence" json:"confidence"`
	State      StrategyState   `yaml:"state" json:"state"`
	Weight     float64         `yaml:"weight" json:"weight"`
	Reason     string          `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// StrategyDeclaration is the externally supplied configuration of one strategy
// ⭐ SSOT: 전략 선언 (외부 설정, 코어는 생성하지 않음)
type StrategyDeclaration struct {
	StrategyID       string            `yaml:"strategy_id" json:"strategy_id"`
	PreferredRegimes []Regime          `yaml:"preferred_regimes" json:"preferred_regimes"`
	MinConfidence    ConfidenceLevel   `yaml:"min_confidence" json:"min_confidence"`
	RiskProfile      RiskProfile       `yaml:"risk_profile" json:"risk_profile"`
	FallbackMode     FallbackMode      `yaml:"fallback_mode" json:"fallback_mode"`
	BaseContribution float64           `yaml:"base_contribution" json:"base_contribution"`
	Instruments      map[string]Action `yaml:"instruments,omitempty" json:"instruments,omitempty"`
	Matrix           []MatrixEntry     `yaml:"matrix,omitempty" json:"matrix,omitempty"`
}

// Prefers reports whether r is in the preferred regime set
func (d *StrategyDeclaration) Prefers(r Regime) bool {
	for _, p := range d.PreferredRegimes {
		if p == r {
			return true
		}
	}
	return false
}

// StrategyEvaluation is the per-cycle eligibility decision for one strategy
type StrategyEvaluation struct {
	StrategyID string        `json:"strategy_id"`
	Enabled    bool          `json:"enabled"`
	State      StrategyState `json:"state"`
	Weight     float64       `json:"weight"`
	Reasons    []string      `json:"reasons"`
}

// IsFullWeight reports whether the strategy is ENABLED at weight 1.0
func (e *StrategyEvaluation) IsFullWeight() bool {
	return e.State == StateEnabled && e.Weight == 1.0
}

// CheckWeight validates the state/weight pairing shared by evaluations and matrix entries
func CheckWeight(state StrategyState, weight float64) error {
	if math.IsNaN(weight) {
		return fmt.Errorf("weight is NaN")
	}
	switch state {
	case StateDisabled:
		if weight != 0.0 {
			return fmt.Errorf("DISABLED requires weight 0.0, got %.4f", weight)
		}
	case StateDegraded:
		if weight <= 0.0 || weight >= 0.5 {
			return fmt.Errorf("DEGRADED requires 0.0 < weight < 0.5, got %.4f", weight)
		}
	case StateEnabled:
		if weight < 0.5 || weight > 1.0 {
			return fmt.Errorf("ENABLED requires 0.5 <= weight <= 1.0, got %.4f", weight)
		}
	default:
		return fmt.Errorf("unknown state %q", state)
	}
	return nil
}

// CheckInvariants asserts the weight, enabled flag and reason invariants of an evaluation
func (e *StrategyEvaluation) CheckInvariants() error {
	if err := CheckWeight(e.State, e.Weight); err != nil {
		return err
	}
	if e.Enabled != (e.State != StateDisabled) {
		return fmt.Errorf("enabled=%t inconsistent with state %s", e.Enabled, e.State)
	}
	if !e.IsFullWeight() && len(e.Reasons) == 0 {
		return fmt.Errorf("state %s at weight %.2f requires a reason", e.State, e.Weight)
	}
	return nil
}

// StrategyAggregate is the joined matrix result fed into the StrategyBehavior dimension
type StrategyAggregate struct {
	Score          int       `json:"score"` // 0~100
	EvaluatedCount int       `json:"evaluated_count"`
	EnabledCount   int       `json:"enabled_count"`
	Findings       []Finding `json:"findings"`
}
