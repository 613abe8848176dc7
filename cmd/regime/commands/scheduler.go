package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-regime/internal/scheduler"
	"github.com/wonny/aegis-regime/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록과 다음 실행 시각
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/regime scheduler start
  go run ./cmd/regime scheduler list
  go run ./cmd/regime scheduler run regime_cycle`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- regime_cycle: CYCLE_SCHEDULE (기본: 평일 15:40, 입력 파일로 사이클 실행)
- health_trend: TREND_SCHEDULE (기본: 평일 15:50, 추세 요약 캐시)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Regime Scheduler ===")

	d, err := initDeps(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	d, err := initDeps(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// 다음 실행 시각은 cron 시작 후에만 계산됨
	sched.Start()
	defer sched.Stop()

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	d, err := initDeps(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunNow(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Printf("\n📊 %s\n", result.JobName)
	fmt.Printf("   Attempts: %d\n", result.Attempts)
	fmt.Printf("   Duration: %s\n", result.Duration)
	if !result.Success {
		fmt.Printf("   ❌ Failed: %s\n", result.Error)
		return fmt.Errorf("job %s failed", jobName)
	}
	fmt.Println("   ✅ Success")
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()

	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %-14s %s", jobName, stats[jobName].Schedule)
		if next, ok := sched.NextRun(jobName); ok {
			fmt.Printf("  (next: %s)", next.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Println()
	}
}

// initScheduler registers the cycle and trend jobs on a new scheduler
func initScheduler(d *deps) (*scheduler.Scheduler, error) {
	loc, err := d.cfg.Regime.Location()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(d.log, scheduler.WithLocation(loc))

	cycleJob := jobs.NewCycleJob(d.cfg.Regime.CycleSchedule, d.cfg.Regime.SnapshotPath, d.engine, d.log)
	if err := sched.AddJob(cycleJob); err != nil {
		return nil, err
	}

	trendJob := jobs.NewTrendJob(d.cfg.Regime.TrendSchedule, d.records, d.cache, d.log)
	if err := sched.AddJob(trendJob); err != nil {
		return nil, err
	}

	return sched, nil
}
