package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata" // 최소 컨테이너에서도 SCHEDULE_TZ 해석

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (선택: URL이 비어 있으면 파일 히스토리 사용)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Regime core
	Regime RegimeConfig

	// Alerting
	Alert AlertConfig

	// API
	API APIConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a PostgreSQL history store is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RegimeConfig holds policy and history locations for the cycle
type RegimeConfig struct {
	PolicyPath    string
	HistoryDir    string
	CycleSchedule string // cron (초 포함 6필드)
	TrendSchedule string
	SnapshotPath  string // 스케줄 사이클 입력 (수집기가 갱신)
	Timezone      string
}

// AlertConfig holds the CRITICAL health alert webhook
type AlertConfig struct {
	WebhookURL string
	Timeout    time.Duration
	MaxPerHour int
}

// Enabled reports whether alert delivery is configured
func (a AlertConfig) Enabled() bool {
	return a.WebhookURL != ""
}

// APIConfig holds HTTP API limits
type APIConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Regime core
		Regime: RegimeConfig{
			PolicyPath:    getEnv("REGIME_POLICY_PATH", "config/regime/policy.yaml"),
			HistoryDir:    getEnv("HISTORY_DIR", "data/history"),
			CycleSchedule: getEnv("CYCLE_SCHEDULE", "0 40 15 * * 1-5"),
			TrendSchedule: getEnv("TREND_SCHEDULE", "0 50 15 * * 1-5"),
			SnapshotPath:  getEnv("CYCLE_INPUT_PATH", "data/cycle_input.json"),
			Timezone:      getEnv("SCHEDULE_TZ", "Asia/Seoul"),
		},

		// Alerting
		Alert: AlertConfig{
			WebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
			Timeout:    getEnvAsDuration("ALERT_TIMEOUT", "10s"),
			MaxPerHour: getEnvAsInt("ALERT_MAX_PER_HOUR", 4),
		},

		// API
		API: APIConfig{
			RateLimitRPS:   getEnvAsFloat("API_RATE_LIMIT_RPS", 5),
			RateLimitBurst: getEnvAsInt("API_RATE_LIMIT_BURST", 10),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Location returns the scheduler time zone
func (r RegimeConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TZ %q: %w", r.Timezone, err)
	}
	return loc, nil
}

// validate reports every invalid setting at once
func (c *Config) validate() error {
	var errs []error

	if c.Regime.PolicyPath == "" {
		errs = append(errs, errors.New("REGIME_POLICY_PATH is required"))
	}
	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("ENV must be one of development, staging, production (got %q)", c.Env))
	}
	if c.API.RateLimitRPS <= 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT_RPS must be > 0"))
	}
	if c.API.RateLimitBurst < 1 {
		errs = append(errs, errors.New("API_RATE_LIMIT_BURST must be >= 1"))
	}
	if c.Alert.MaxPerHour < 1 {
		errs = append(errs, errors.New("ALERT_MAX_PER_HOUR must be >= 1"))
	}
	if _, err := c.Regime.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// loadEnvFile loads the first .env found in the working directory or next to the binary
// 이미 설정된 환경변수는 덮어쓰지 않음
func loadEnvFile() {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAs parses key with parse, falling back to defaultValue when unset or malformed
func getEnvAs[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := parse(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvAsInt(key string, defaultValue int) int {
	return getEnvAs(key, defaultValue, strconv.Atoi)
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	return getEnvAs(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func getEnvAsBool(key string, defaultValue bool) bool {
	return getEnvAs(key, defaultValue, strconv.ParseBool)
}

// defaultValue는 항상 유효한 duration 리터럴
func getEnvAsDuration(key string, defaultValue string) time.Duration {
	fallback, _ := time.ParseDuration(defaultValue)
	return getEnvAs(key, fallback, time.ParseDuration)
}
