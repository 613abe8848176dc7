package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	policyPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "regime",
	Short: "Aegis Regime - 시장 레짐 신뢰도 & 헬스 코어",
	Long: `Aegis Regime Unified CLI

시장 지표 스냅샷으로 레짐을 분류하고 신뢰도를 산출한 뒤,
전략 활성화 여부와 시스템 헬스 점수를 결정합니다.

R0 → R1 → R2 → R3

Usage:
  go run ./cmd/regime [command]

Examples:
  go run ./cmd/regime run --input data/cycle_input.json
  go run ./cmd/regime gate
  go run ./cmd/regime api --with-scheduler
  go run ./cmd/regime policy validate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "policy YAML (default: REGIME_POLICY_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
