package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-regime/internal/policy"
	"github.com/wonny/aegis-regime/pkg/config"
)

// policyCmd represents the policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "정책 파일 관리",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "정책 YAML 검증",
	Long: `정책 YAML을 검증하고 해시, 경고, 거부된 전략 선언을 출력합니다.

검증 실패 시 exit code 1 (사이클 실행 불가 상태).
개별 전략 선언 오류는 실패가 아닌 거부로 표시됩니다.

Example:
  go run ./cmd/regime policy validate
  go run ./cmd/regime policy validate config/regime/policy.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPolicyValidate,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyValidateCmd)
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	path, err := resolvePolicyPath(args)
	if err != nil {
		return err
	}

	fmt.Printf("=== Policy Validation: %s ===\n", path)

	p, _, err := policy.Load(path)
	if err != nil {
		fmt.Printf("❌ INVALID: %v\n", err)
		return fmt.Errorf("policy validation failed: %w", err)
	}

	hash, err := policy.Hash(p)
	if err != nil {
		return fmt.Errorf("hash policy: %w", err)
	}

	fmt.Println("✅ VALID")
	fmt.Printf("  Policy ID : %s (v%s)\n", p.Meta.PolicyID, p.Meta.Version)
	fmt.Printf("  Hash      : %s\n", hash)
	fmt.Printf("  Active    : %s\n", strings.Join(p.ActiveStrategies, ", "))

	_, rejected := p.Declarations()
	if len(rejected) > 0 {
		fmt.Printf("\n🚫 Rejected declarations (%d)\n", len(rejected))
		for _, r := range rejected {
			fmt.Printf("  - %s: %s\n", r.StrategyID, r.Reason)
		}
	}

	if warnings := policy.Warn(p); len(warnings) > 0 {
		fmt.Printf("\n⚠️  Warnings (%d)\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("  - [%s] %s\n", w.Code, w.Message)
		}
	}

	return nil
}

// resolvePolicyPath: 인자 > --policy > REGIME_POLICY_PATH
func resolvePolicyPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if policyPath != "" {
		return policyPath, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if _, err := os.Stat(cfg.Regime.PolicyPath); err != nil {
		return "", fmt.Errorf("policy file: %w", err)
	}
	return cfg.Regime.PolicyPath, nil
}
