package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-regime/internal/health"
)

// gateCmd represents the gate command
var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Health Gate - 배포/CI 게이트 판정",
	Long: `최신 헬스 기록(또는 --score)으로 게이트를 판정합니다.

판정:
- PASS:           ≥85
- WARN:           70~84
- WARN_HOLD_BIAS: 50~69
- FAIL:           <50 (exit code 1)

Example:
  go run ./cmd/regime gate
  go run ./cmd/regime gate --score 72`,
	RunE: runGate,
}

var gateScore int

func init() {
	rootCmd.AddCommand(gateCmd)

	gateCmd.Flags().IntVar(&gateScore, "score", -1, "health score to evaluate (default: latest record)")
}

func runGate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Health Gate ===")

	var result health.GateResult
	if cmd.Flags().Changed("score") {
		if gateScore < 0 || gateScore > 100 {
			return fmt.Errorf("invalid score: %d (use 0-100)", gateScore)
		}
		result = health.Gate(gateScore)
	} else {
		ctx := cmd.Context()

		d, err := initDeps(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		records, err := d.records.ListHealth(ctx, 1)
		if err != nil {
			return fmt.Errorf("failed to read health history: %w", err)
		}
		if len(records) == 0 {
			return fmt.Errorf("no health record yet: run a cycle first")
		}

		latest := records[0]
		fmt.Printf("📅 Record: %s (cycle %s)\n", latest.Date, latest.CycleID)
		result = health.Gate(latest.HealthScore)
	}

	PrintGate(result)

	if !result.Passed() {
		return fmt.Errorf("health gate failed with score %d", result.Score)
	}
	return nil
}
