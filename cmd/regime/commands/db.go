package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-regime/pkg/config"
	"github.com/wonny/aegis-regime/pkg/database"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "PostgreSQL 히스토리 저장소 관리",
	Long: `DATABASE_URL이 설정된 경우 히스토리 저장소를 점검하거나 마이그레이션합니다.

Example:
  go run ./cmd/regime db check
  go run ./cmd/regime db migrate`,
}

var (
	dbCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "DB 연결 및 풀 상태 확인",
		RunE:  runDBCheck,
	}

	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "히스토리 테이블 생성 (멱등)",
		RunE:  runDBMigrate,
	}
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbCheckCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Database Connection Check ===")

	cfg, db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("✅ Connected (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Println("📊 Pool")
	fmt.Printf("   Response Time : %s\n", status.ResponseTime)
	fmt.Printf("   Total Conns   : %d\n", status.TotalConns)
	fmt.Printf("   Acquired      : %d\n", status.AcquiredConns)
	fmt.Printf("   Idle          : %d\n", status.IdleConns)
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	_, db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("✅ Migration complete (regime.assessments, regime.health_history)")
	return nil
}

func openDB(ctx context.Context) (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, db, nil
}

// maskPassword hides the password of a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
