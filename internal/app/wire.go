package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/userdir/internal/backend"
	"github.com/hitoshi/userdir/internal/config"
	"github.com/hitoshi/userdir/internal/database"
	"github.com/hitoshi/userdir/internal/metrics"
	"github.com/hitoshi/userdir/internal/retry"
	"github.com/hitoshi/userdir/internal/security"
	"github.com/hitoshi/userdir/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

// connMaxLifetime はPostgreSQL接続の最大寿命。
const connMaxLifetime = 30 * time.Minute

// components は1プロセス分の依存関係をまとめた構造体。
type components struct {
	service  *user.Service
	registry *prometheus.Registry

	// db はPostgreSQLバックエンドが生成済みの場合のみ設定される
	db *sql.DB
}

// close は生成済みの接続を閉じる。
func (c *components) close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// buildComponents はConfigから読み取りサービスとメトリクスレジストリを組み立てる。
// バックエンドクライアントは初回呼び出し時に生成されるため、ここでは接続しない。
func buildComponents(cfg *config.Config, logger *slog.Logger) *components {
	c := &components{registry: prometheus.NewRegistry()}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(c.registry)

	lazy := backend.NewLazy(func() (backend.Client, error) {
		return c.newBackend(cfg, logger)
	})

	// Recorder → Timeout → Lazy の順に包む
	client := backend.WithRecorder(backend.WithTimeout(lazy, cfg.BackendTimeout), collector)

	c.service = user.NewService(client, logger, user.ServiceConfig{
		Retry: retry.Policy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
		},
		Metrics:    collector,
		Sanitizer:  security.NewProfileSanitizer(),
		BatchRate:  rate.Limit(cfg.BatchRatePerSec),
		BatchBurst: 1,
		Location:   cfg.StatsLocation,
	})

	return c
}

// newBackend はBACKEND_KINDに応じたバックエンドクライアントを生成する。
func (c *components) newBackend(cfg *config.Config, logger *slog.Logger) (backend.Client, error) {
	switch cfg.BackendKind {
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL, database.PoolOptions{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxOpenConns,
			ConnMaxLifetime: connMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		c.db = db
		logger.Info("PostgreSQLバックエンドを初期化しました",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		return backend.NewPostgres(db, ""), nil

	case config.BackendREST:
		client, err := backend.NewREST(
			&http.Client{Timeout: cfg.BackendTimeout},
			logger,
			cfg.SupabaseURL,
			cfg.SupabaseServiceKey,
		)
		if err != nil {
			return nil, err
		}
		logger.Info("RESTバックエンドを初期化しました",
			slog.String("base_url", cfg.SupabaseURL),
		)
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported backend kind: %q", cfg.BackendKind)
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
