package strategy

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/policy"
)

// Reasons
const (
	ReasonUndeclared      = "undeclared strategy"
	ReasonCollapse        = "collapsed regime confidence"
	ReasonNotPreferred    = "regime outside preferred set"
	ReasonBelowFloor      = "confidence below declared floor"
	ReasonFallbackApplied = "no matrix entry, fallback applied"
)

type matrixKey struct {
	regime contracts.Regime
	level  contracts.ConfidenceLevel
}

// Matrix implements R2: strategy eligibility
// ⭐ SSOT: 전략 활성/가중치 결정은 여기서만
type Matrix struct {
	cfg policy.StrategyPolicy
}

// NewMatrix creates a strategy eligibility matrix
func NewMatrix(cfg policy.StrategyPolicy) *Matrix {
	return &Matrix{cfg: cfg}
}

// Evaluate decides state and weight for one strategy
// decl == nil 이면 미선언 전략 (DISABLED)
// 우선순위: undeclared → collapse → preferred → floor → matrix → fallback (앞 규칙이 뒤를 단락)
func (m *Matrix) Evaluate(id string, decl *contracts.StrategyDeclaration, regime contracts.Regime, level contracts.ConfidenceLevel) (contracts.StrategyEvaluation, error) {
	eval := m.decide(id, decl, regime, level)

	if err := eval.CheckInvariants(); err != nil {
		return contracts.StrategyEvaluation{}, contracts.NewConfigurationFault("strategy", "%s: %v", id, err)
	}
	return eval, nil
}

func (m *Matrix) decide(id string, decl *contracts.StrategyDeclaration, regime contracts.Regime, level contracts.ConfidenceLevel) contracts.StrategyEvaluation {
	if decl == nil {
		return disabled(id, ReasonUndeclared)
	}
	if level == contracts.ConfidenceCollapse && decl.RiskProfile != contracts.RiskDefensive {
		return disabled(id, ReasonCollapse)
	}
	if !decl.Prefers(regime) {
		return disabled(id, ReasonNotPreferred)
	}
	if level.Ordinal() < decl.MinConfidence.Ordinal() {
		return disabled(id, ReasonBelowFloor)
	}

	var eval contracts.StrategyEvaluation
	if entry, ok := lookup(decl)[matrixKey{regime, level}]; ok {
		eval = contracts.StrategyEvaluation{
			StrategyID: id,
			State:      entry.State,
			Weight:     entry.Weight,
			Reasons:    []string{},
		}
		if entry.Reason != "" {
			eval.Reasons = append(eval.Reasons, entry.Reason)
		}
	} else {
		eval = m.fallback(id, decl.FallbackMode)
	}
	eval.Enabled = eval.State != contracts.StateDisabled

	// 신뢰도 때문에 감소된 결과는 레벨을 사유로 남김
	if !eval.IsFullWeight() {
		eval.Reasons = append(eval.Reasons, fmt.Sprintf("%s regime confidence", level))
	}
	return eval
}

func (m *Matrix) fallback(id string, mode contracts.FallbackMode) contracts.StrategyEvaluation {
	if mode == contracts.FallbackDegraded {
		return contracts.StrategyEvaluation{
			StrategyID: id,
			State:      contracts.StateDegraded,
			Weight:     m.cfg.FallbackDegradedWeight,
			Reasons:    []string{ReasonFallbackApplied},
		}
	}
	return contracts.StrategyEvaluation{
		StrategyID: id,
		State:      contracts.StateDisabled,
		Weight:     0.0,
		Reasons:    []string{ReasonFallbackApplied},
	}
}

// EvaluateAll evaluates every active strategy concurrently, joined in strategy_id order
// 전략 간 공유 가변 상태 없음. 하나라도 실패하면 사이클 전체 실패
func (m *Matrix) EvaluateAll(
	ctx context.Context,
	ids []string,
	decls map[string]*contracts.StrategyDeclaration,
	regime contracts.Regime,
	level contracts.ConfidenceLevel,
) ([]contracts.StrategyEvaluation, error) {
	results := make([]contracts.StrategyEvaluation, len(ids))

	g, _ := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			eval, err := m.Evaluate(id, decls[id], regime, level)
			if err != nil {
				return err
			}
			results[i] = eval
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StrategyID < results[j].StrategyID
	})
	return results, nil
}

func disabled(id, reason string) contracts.StrategyEvaluation {
	return contracts.StrategyEvaluation{
		StrategyID: id,
		Enabled:    false,
		State:      contracts.StateDisabled,
		Weight:     0.0,
		Reasons:    []string{reason},
	}
}

// lookup builds the (regime, level) → entry map of a declaration
func lookup(decl *contracts.StrategyDeclaration) map[matrixKey]contracts.MatrixEntry {
	table := make(map[matrixKey]contracts.MatrixEntry, len(decl.Matrix))
	for _, e := range decl.Matrix {
		table[matrixKey{e.Regime, e.Confidence}] = e
	}
	return table
}
