package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/userdir/internal/metrics"
	"github.com/hitoshi/userdir/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	APIToken    string
	RateLimiter *middleware.RateLimiter

	// メトリクス公開元。nilの場合は /metrics を公開しない
	Gatherer prometheus.Gatherer

	// ユーザー参照
	Users       UserReader
	MaxBatchIDs int

	// 統計
	Stats StatsReader
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Recovery → Logging → APIToken → RateLimit
//
// /health と /metrics は認証とレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))

	userHandler := NewUserHandler(deps.Users, deps.MaxBatchIDs)
	statsHandler := NewStatsHandler(deps.Stats)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---
	// ミドルウェアスタック: APIToken → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAPITokenMiddleware(deps.APIToken, logger))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.FindByEmail)
			r.Post("/batch", userHandler.BatchLookup)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				r.Get("/basic", userHandler.GetUserBasic)
				r.Get("/exists", userHandler.CheckExists)
			})
		})

		r.Route("/api/stats", func(r chi.Router) {
			r.Get("/summary", statsHandler.Summary)
			r.Get("/new-users", statsHandler.NewUsers)
			r.Get("/retention", statsHandler.Retention)
			r.Get("/retention/breakdown", statsHandler.RetentionBreakdown)
		})
	})

	return r
}

// healthHandler はプロセスの稼働確認に応答する。
// バックエンドには接続しない。
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
