package commands

import (
	"fmt"
	"strings"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/health"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	heavyRule = "═══════════════════════════════════════════════════════════"
	lightRule = "───────────────────────────────────────────────────────────"
)

// PrintHeader prints a boxed section title
func PrintHeader(title string) {
	fmt.Println()
	fmt.Println(heavyRule)
	fmt.Printf("  %s\n", title)
	fmt.Println(lightRule)
}

// PrintCycle prints the full result of one cycle
func PrintCycle(out *contracts.CycleOutput) {
	PrintHeader("Regime Cycle")
	fmt.Printf("  Cycle ID   : %s\n", out.CycleID)
	fmt.Printf("  As Of      : %s\n", out.Regime.AsOf.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Data Path  : %s\n", out.DataPath)
	fmt.Printf("  Policy     : %s\n", shortHash(out.PolicyHash))
	fmt.Println(lightRule)

	r := out.Regime
	fmt.Printf("📈 Regime     : %s (trend=%s, volatility=%s, breadth=%s)\n",
		r.Regime, r.Signals.Trend, r.Signals.Volatility, r.Signals.Breadth)
	fmt.Printf("🎯 Confidence : %.4f [%s]", r.Confidence, r.ConfidenceLevel)
	if r.Unreliable {
		fmt.Print("  ⚠️  UNRELIABLE")
	}
	fmt.Println()

	fmt.Printf("\n🧭 Strategies (%d)\n", len(out.Strategies))
	for _, e := range out.Strategies {
		fmt.Printf("  %-20s %-9s weight=%.2f", e.StrategyID, e.State, e.Weight)
		if len(e.Reasons) > 0 {
			fmt.Printf("  (%s)", strings.Join(e.Reasons, "; "))
		}
		fmt.Println()
	}

	PrintHealth(&out.Health)
}

// PrintHealth prints a health score with its caps and violations
func PrintHealth(h *contracts.HealthScore) {
	fmt.Printf("\n%s Health: %d (raw %d) %s\n", statusIcon(h.Status), h.Score, h.RawScore, h.Status)

	if len(h.CapsApplied) > 0 {
		fmt.Printf("  Caps       : %s\n", strings.Join(h.CapsApplied, ", "))
	}
	if len(h.Violations) > 0 {
		fmt.Printf("  Violations : %s\n", strings.Join(h.Violations, ", "))
	}
	for i, e := range h.Explanations {
		fmt.Printf("  %d. %s\n", i+1, e)
	}
	if h.SuppressRecommendations {
		fmt.Println("  🚫 Downstream recommendations suppressed, alert required")
	}
}

// PrintGate prints a gate decision
func PrintGate(g health.GateResult) {
	icon := "✅"
	switch g.Outcome {
	case health.GateWarn, health.GateWarnHold:
		icon = "⚠️ "
	case health.GateFail:
		icon = "❌"
	}
	fmt.Printf("%s %s\n", icon, g.Outcome)
	fmt.Printf("💬 %s\n", g.Message)
}

// PrintTrend prints a health trend summary
func PrintTrend(t health.Trend) {
	PrintHeader(fmt.Sprintf("Health Trend (%d records)", t.RecordCount))
	fmt.Printf("  Latest Score       : %s\n", optInt(t.LatestScore))
	fmt.Printf("  MA 5d / 20d        : %s / %s\n", optFloat(t.MovingAverage5), optFloat(t.MovingAverage20))
	fmt.Printf("  Slope 7d           : %s\n", optFloat(t.Slope7))
	fmt.Printf("  Violation Density  : %s (5d) / %s (20d)\n", optFloat(t.ViolationDensity5), optFloat(t.ViolationDensity20))
	fmt.Printf("  Recovery Time      : %s days\n", optInt(t.RecoveryTimeDays))

	if len(t.RootCauseSummary) > 0 {
		fmt.Println("\n🔍 Root Causes")
		for _, rc := range t.RootCauseSummary {
			fmt.Printf("  %-36s %d\n", rc.Violation, rc.Count)
		}
	}
}

func statusIcon(s contracts.HealthStatus) string {
	switch s {
	case contracts.HealthHealthy:
		return "✅"
	case contracts.HealthDegraded:
		return "⚠️ "
	default:
		return "❌"
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func optFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func optInt(v *int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *v)
}
