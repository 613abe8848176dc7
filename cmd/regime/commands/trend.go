package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-regime/internal/health"
)

// trendCmd represents the trend command
var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "헬스 추세 조회",
	Long: `일별 헬스 기록으로 추세를 계산합니다.

- 5일/20일 이동평균
- 7일 기울기
- 위반 밀도
- 회복 소요일
- 주요 위반 원인

Example:
  go run ./cmd/regime trend
  go run ./cmd/regime trend --json`,
	RunE: runTrend,
}

var trendJSON bool

func init() {
	rootCmd.AddCommand(trendCmd)

	trendCmd.Flags().BoolVar(&trendJSON, "json", false, "print the trend as JSON")
}

func runTrend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := initDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close()

	records, err := d.records.ListHealth(ctx, health.TrendWindow)
	if err != nil {
		return fmt.Errorf("failed to read health history: %w", err)
	}

	trend := health.ComputeTrend(records)

	if trendJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trend)
	}

	PrintTrend(trend)
	return nil
}
