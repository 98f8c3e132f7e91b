package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// バックエンドの種類
const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	BackendKind        string
	DatabaseURL        string
	SupabaseURL        string
	SupabaseServiceKey string
	BackendTimeout     time.Duration
	DBMaxOpenConns     int

	// Retry
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	// Batch
	BatchRatePerSec float64
	BatchMaxIDs     int

	// Stats
	StatsTimezone string
	StatsLocation *time.Location

	// Server
	ServerPort string
	APIToken   string

	// Rate Limit
	RateLimitPerMin int

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// BACKEND_KINDに応じた必須環境変数が未設定の場合や値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.BackendKind = strings.ToLower(getEnvString("BACKEND_KIND", BackendPostgres))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
	cfg.SupabaseServiceKey = os.Getenv("SUPABASE_SERVICE_KEY")

	// Required fields
	var missing []string
	switch cfg.BackendKind {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendREST:
		if cfg.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if cfg.SupabaseServiceKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_KEY")
		}
	default:
		return nil, fmt.Errorf("unsupported BACKEND_KIND: %q (want %q or %q)", cfg.BackendKind, BackendPostgres, BackendREST)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 10*time.Second)
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.RetryMaxAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", 3)
	cfg.RetryInitialBackoff = getEnvDuration("RETRY_INITIAL_BACKOFF", 100*time.Millisecond)
	cfg.RetryMaxBackoff = getEnvDuration("RETRY_MAX_BACKOFF", 2*time.Second)
	cfg.BatchRatePerSec = getEnvFloat("BATCH_RATE_PER_SEC", 0)
	cfg.BatchMaxIDs = getEnvInt("BATCH_MAX_IDS", 100)
	cfg.StatsTimezone = getEnvString("STATS_TIMEZONE", "Local")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.APIToken = os.Getenv("API_TOKEN")
	cfg.RateLimitPerMin = getEnvInt("RATE_LIMIT_PER_MIN", 120)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))

	if cfg.RetryMaxAttempts < 1 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", cfg.RetryMaxAttempts)
	}

	loc, err := time.LoadLocation(cfg.StatsTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_TIMEZONE %q: %w", cfg.StatsTimezone, err)
	}
	cfg.StatsLocation = loc

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
