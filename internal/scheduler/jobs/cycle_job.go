package jobs

import (
	"context"
	"errors"

	"github.com/wonny/aegis-regime/internal/brain"
	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/scheduler"
	"github.com/wonny/aegis-regime/pkg/logger"
)

// CycleRunner runs one regime cycle (implemented by brain.Orchestrator)
type CycleRunner interface {
	RunCycle(ctx context.Context, in contracts.CycleInput) (*contracts.CycleOutput, error)
}

// CycleJob runs the regime cycle on the collector's latest input file
type CycleJob struct {
	schedule  string
	inputPath string
	runner    CycleRunner
	logger    *logger.Logger
}

// NewCycleJob creates the scheduled regime cycle job
func NewCycleJob(schedule, inputPath string, runner CycleRunner, log *logger.Logger) *CycleJob {
	return &CycleJob{
		schedule:  schedule,
		inputPath: inputPath,
		runner:    runner,
		logger:    log,
	}
}

// Name returns the job name
func (j *CycleJob) Name() string {
	return "regime_cycle"
}

// Schedule returns the cron expression
func (j *CycleJob) Schedule() string {
	return j.schedule
}

// Run loads the input and runs one cycle
// 입력 파일 미생성은 재시도 (수집기 지연), 데이터/설정 오류는 재시도하지 않음
func (j *CycleJob) Run(ctx context.Context) error {
	in, err := brain.LoadInput(j.inputPath)
	if err != nil {
		var invalid *contracts.InvalidInputError
		if errors.As(err, &invalid) {
			return scheduler.Permanent(err)
		}
		return err
	}

	out, err := j.runner.RunCycle(ctx, in)
	if err != nil {
		switch brain.ErrorKind(err) {
		case "insufficient_data", "configuration_fault", "invalid_input":
			return scheduler.Permanent(err)
		}
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"cycle_id":     out.CycleID,
		"regime":       out.Regime.Regime,
		"health_score": out.Health.Score,
	}).Info("Scheduled regime cycle completed")
	return nil
}
