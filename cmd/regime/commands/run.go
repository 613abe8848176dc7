package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-regime/internal/brain"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "레짐 사이클 1회 실행",
	Long: `지표 스냅샷 입력 파일로 사이클을 1회 실행합니다.

R0: 지표 → 레짐 분류
R1: 신뢰도 산출 (히스토리 안정성 포함)
R2: 전략 활성화 결정
R3: 헬스 점수 집계

결과는 히스토리 저장소에 기록됩니다 (같은 입력 재실행 시 동일 결과).

Example:
  go run ./cmd/regime run
  go run ./cmd/regime run --input data/cycle_input.json
  go run ./cmd/regime run --json`,
	RunE: runCycle,
}

var (
	runInput string
	runJSON  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runInput, "input", "", "cycle input JSON (default: CYCLE_INPUT_PATH)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the cycle output as JSON")
}

func runCycle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := initDeps(ctx, runJSON)
	if err != nil {
		return err
	}
	defer d.Close()

	path := runInput
	if path == "" {
		path = d.cfg.Regime.SnapshotPath
	}

	in, err := brain.LoadInput(path)
	if err != nil {
		return err
	}

	out, err := d.engine.RunCycle(ctx, in)
	if out == nil {
		return fmt.Errorf("cycle failed: %w", err)
	}
	if err != nil {
		// 사이클은 완료, 히스토리 기록만 실패
		fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	PrintCycle(out)
	return err
}
