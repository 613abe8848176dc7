package commands

import (
	"context"
	"fmt"

	"github.com/wonny/aegis-regime/internal/alert"
	"github.com/wonny/aegis-regime/internal/brain"
	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/history"
	"github.com/wonny/aegis-regime/internal/metrics"
	"github.com/wonny/aegis-regime/internal/policy"
	"github.com/wonny/aegis-regime/pkg/config"
	"github.com/wonny/aegis-regime/pkg/database"
	"github.com/wonny/aegis-regime/pkg/logger"
	"github.com/wonny/aegis-regime/pkg/redis"
)

// cachePrefix Redis 키 네임스페이스
const cachePrefix = "regime"

// deps is the shared wiring of every command that runs cycles
type deps struct {
	cfg     *config.Config
	log     *logger.Logger
	policy  *policy.Policy
	redis   *redis.Client
	cache   *redis.Cache
	db      *database.DB // nil: 파일 히스토리
	history contracts.RegimeHistory
	records contracts.HealthHistory
	metrics *metrics.Registry
	engine  *brain.Orchestrator
}

// initDeps loads config and policy, opens the history stores and builds the orchestrator
// quiet: 경고 이상만 로깅 (CLI 출력과 섞이지 않도록)
func initDeps(ctx context.Context, quiet bool) (*deps, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if policyPath != "" {
		cfg.Regime.PolicyPath = policyPath
	}
	switch {
	case quiet:
		cfg.LogLevel = "warn"
	case verbose:
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load policy (검증 실패 시 사이클 실행 불가)
	p, _, err := policy.Load(cfg.Regime.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	for _, w := range policy.Warn(p) {
		log.WithFields(map[string]interface{}{
			"code":    w.Code,
			"message": w.Message,
		}).Warn("Policy warning")
	}

	// 4. Connect to redis (비활성화 시 no-op 클라이언트)
	rc, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	d := &deps{
		cfg:     cfg,
		log:     log,
		policy:  p,
		redis:   rc,
		cache:   redis.NewCache(rc, cachePrefix),
		metrics: metrics.NewRegistry(),
	}

	// 5. History stores
	if err := d.initStores(ctx); err != nil {
		d.Close()
		return nil, err
	}

	// 6. Orchestrator
	engine, err := brain.NewOrchestrator(p, d.history, log)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	engine.WithHealthHistory(d.records).WithMetrics(d.metrics)

	// 7. CRITICAL 헬스 알림
	if cfg.Alert.Enabled() {
		engine.AddPublisher(alert.NewNotifier(cfg.Alert, rc, log).WithRecorder(d.metrics))
	}

	d.engine = engine
	return d, nil
}

// initStores picks the history backends
// PostgreSQL > Redis 버퍼 + 파일 헬스 기록 > 파일
func (d *deps) initStores(ctx context.Context) error {
	capacity := history.Capacity(d.policy.Confidence.StabilityWindow)

	if d.cfg.Database.Enabled() {
		db, err := database.New(ctx, d.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		d.db = db

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		store := history.NewPostgresStore(db.Pool)
		d.history = store
		d.records = store
		d.log.Info("Using PostgreSQL history store")
		return nil
	}

	files, err := history.NewFileStore(d.cfg.Regime.HistoryDir, capacity)
	if err != nil {
		return fmt.Errorf("open history dir: %w", err)
	}
	d.records = files
	d.history = files

	if d.redis.Enabled() {
		d.history = history.NewRedisBuffer(d.redis, cachePrefix, capacity)
		d.log.Info("Using Redis regime history buffer")
	}

	d.log.WithField("dir", d.cfg.Regime.HistoryDir).Info("Using file health history")
	return nil
}

// Close releases the database pool and redis connection
func (d *deps) Close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.log.WithError(err).Warn("Failed to close redis")
		}
	}
}
