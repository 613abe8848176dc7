package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/health"
	"github.com/wonny/aegis-regime/pkg/httputil"
	"github.com/wonny/aegis-regime/pkg/logger"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "실행 중인 API 서버의 최신 상태 조회",
	Long: `API 서버에서 최신 사이클과 게이트 판정을 조회합니다.

Example:
  go run ./cmd/regime status
  go run ./cmd/regime status --url http://localhost:8089`,
	RunE: runStatus,
}

var (
	statusURL     string
	statusTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost:8089", "API 서버 주소")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "요청 타임아웃")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	base := strings.TrimRight(statusURL, "/")

	client := httputil.New(statusTimeout, logger.Nop()).DisableRetry()

	var latest contracts.CycleOutput
	if err := client.GetJSON(ctx, base+"/api/regime/latest", &latest); err != nil {
		return fmt.Errorf("fetch latest cycle: %w", err)
	}
	PrintCycle(&latest)

	var gate health.GateResult
	if err := client.GetJSON(ctx, base+"/api/health/gate", &gate); err != nil {
		return fmt.Errorf("fetch gate: %w", err)
	}
	fmt.Println()
	PrintGate(gate)

	return nil
}
