package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-regime/internal/api"
	"github.com/wonny/aegis-regime/internal/api/handlers"
	"github.com/wonny/aegis-regime/internal/scheduler"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health               - Health check
  GET  /metrics              - Prometheus metrics
  GET  /ws/cycles            - 사이클 결과 WebSocket 스트림
  POST /api/cycle            - 사이클 실행 (rate limited)
  GET  /api/regime/latest    - 최신 사이클
  GET  /api/cycles/{id}      - 사이클 조회
  GET  /api/strategies       - 전략 선언
  GET  /api/health/history   - 일별 헬스 기록
  GET  /api/health/trend     - 헬스 추세
  GET  /api/health/gate      - 게이트 판정

Example:
  go run ./cmd/regime api
  go run ./cmd/regime api --port 8089 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄 사이클도 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Regime API Server ===")

	d, err := initDeps(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer d.Close()

	// Override port if flag is set
	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	d.log.WithFields(map[string]interface{}{
		"port":   d.cfg.Port,
		"env":    d.cfg.Env,
		"policy": d.policy.Meta.PolicyID,
	}).Info("Initializing API server")

	// Handlers (오케스트레이터 publisher로 등록 → 스케줄 사이클도 반영)
	regimeHandler := handlers.NewRegimeHandler(d.engine, d.records, d.cache, d.log)
	stream := api.NewStream(d.log)
	d.engine.AddPublisher(regimeHandler).AddPublisher(stream)

	var metricsHandler http.Handler
	if d.cfg.MetricsEnabled {
		metricsHandler = d.metrics.Handler()
	}

	router := api.NewRouter(api.RouterConfig{
		Regime:     regimeHandler,
		Stream:     stream,
		Metrics:    metricsHandler,
		CycleRPS:   d.cfg.API.RateLimitRPS,
		CycleBurst: d.cfg.API.RateLimitBurst,
	}, d.log)

	server := api.New(d.cfg, d.log, router)
	server.OnShutdown(stream.Close)

	var sched *scheduler.Scheduler
	if apiWithScheduler {
		sched, err = initScheduler(d)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
	}

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	if sched != nil {
		printJobs(sched)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	d.log.Info("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	d.log.Info("Server stopped")
	return nil
}
