package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wonny/aegis-regime/internal/contracts"
)

// Aggregate joins completed evaluations into the StrategyBehavior dimension
// evals는 EvaluateAll의 결과 전체여야 함 (부분 집계 금지)
// contributing: 외부 스코어러가 이번 사이클에 실제로 사용한 전략 ID
func (m *Matrix) Aggregate(
	evals []contracts.StrategyEvaluation,
	decls map[string]*contracts.StrategyDeclaration,
	contributing []string,
) contracts.StrategyAggregate {
	agg := contracts.StrategyAggregate{
		EvaluatedCount: len(evals),
		Findings:       []contracts.Finding{},
	}

	var total, enabled float64
	for _, e := range evals {
		base := baseOf(decls[e.StrategyID])
		total += base
		if e.Enabled {
			agg.EnabledCount++
			enabled += base * e.Weight // DISABLED는 weight 0 → 기여 0
		}
	}
	if total > 0 {
		agg.Score = int(math.Round(100 * contracts.Clamp01(enabled/total)))
	}

	agg.Findings = append(agg.Findings, conflicts(evals, decls)...)
	if f, ok := m.concentration(evals, decls); ok {
		agg.Findings = append(agg.Findings, f)
	}
	agg.Findings = append(agg.Findings, disabledContributing(evals, contributing)...)

	return agg
}

// conflicts: ENABLED 전략끼리 같은 종목에 LONG/SHORT 대립 → 해결하지 않고 위반으로 보고
func conflicts(evals []contracts.StrategyEvaluation, decls map[string]*contracts.StrategyDeclaration) []contracts.Finding {
	byInstrument := make(map[string]map[contracts.Action][]string)
	for _, e := range evals {
		if e.State != contracts.StateEnabled {
			continue
		}
		d := decls[e.StrategyID]
		if d == nil {
			continue
		}
		for instrument, action := range d.Instruments {
			if byInstrument[instrument] == nil {
				byInstrument[instrument] = make(map[contracts.Action][]string)
			}
			byInstrument[instrument][action] = append(byInstrument[instrument][action], e.StrategyID)
		}
	}

	instruments := make([]string, 0, len(byInstrument))
	for instrument := range byInstrument {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)

	var findings []contracts.Finding
	for _, instrument := range instruments {
		longs := byInstrument[instrument][contracts.ActionLong]
		shorts := byInstrument[instrument][contracts.ActionShort]
		if len(longs) == 0 || len(shorts) == 0 {
			continue
		}
		sort.Strings(longs)
		sort.Strings(shorts)
		findings = append(findings, contracts.Finding{
			Code: contracts.ViolationStrategyConflict,
			Explanation: fmt.Sprintf("Enabled strategies disagree on %s: LONG by %s, SHORT by %s",
				instrument, strings.Join(longs, ", "), strings.Join(shorts, ", ")),
		})
	}
	return findings
}

// concentration: 활성 가중치 중 한 방향 비중이 한도 초과
// 방향성 전략이 2개 미만이면 판단하지 않음
func (m *Matrix) concentration(evals []contracts.StrategyEvaluation, decls map[string]*contracts.StrategyDeclaration) (contracts.Finding, bool) {
	var long, short float64
	directional := 0
	for _, e := range evals {
		if !e.Enabled {
			continue
		}
		d := decls[e.StrategyID]
		dir, ok := direction(d)
		if !ok {
			continue
		}
		directional++
		w := baseOf(d) * e.Weight
		if dir == contracts.ActionLong {
			long += w
		} else {
			short += w
		}
	}

	total := long + short
	if directional < 2 || total == 0 {
		return contracts.Finding{}, false
	}

	dir, share := contracts.ActionLong, long/total
	if short > long {
		dir, share = contracts.ActionShort, short/total
	}
	if share <= m.cfg.MaxDirectionalShare {
		return contracts.Finding{}, false
	}
	return contracts.Finding{
		Code: contracts.ViolationDirectionalConc,
		Explanation: fmt.Sprintf("%.0f%% of enabled strategy weight points %s (limit %.0f%%)",
			share*100, dir, m.cfg.MaxDirectionalShare*100),
	}, true
}

// disabledContributing: DISABLED 판정인데 외부 스코어러가 여전히 사용한 전략
func disabledContributing(evals []contracts.StrategyEvaluation, contributing []string) []contracts.Finding {
	state := make(map[string]contracts.StrategyState, len(evals))
	for _, e := range evals {
		state[e.StrategyID] = e.State
	}

	ids := append([]string(nil), contributing...)
	sort.Strings(ids)

	var findings []contracts.Finding
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		s, ok := state[id]
		if ok && s != contracts.StateDisabled {
			continue
		}
		findings = append(findings, contracts.Finding{
			Code:        contracts.ViolationDisabledContributing,
			Explanation: fmt.Sprintf("Strategy %s is disabled this cycle but still contributed to scoring", id),
		})
	}
	return findings
}

// direction returns the single action a strategy takes across its instruments
func direction(d *contracts.StrategyDeclaration) (contracts.Action, bool) {
	if d == nil || len(d.Instruments) == 0 {
		return "", false
	}
	var dir contracts.Action
	for _, a := range d.Instruments {
		if dir == "" {
			dir = a
		} else if dir != a {
			return "", false
		}
	}
	return dir, true
}

func baseOf(d *contracts.StrategyDeclaration) float64 {
	if d == nil {
		return 0
	}
	return d.BaseContribution
}
