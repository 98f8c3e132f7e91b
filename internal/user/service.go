// Package user はリモートのユーザーディレクトリに対する読み取り操作を提供する。
//
// 各操作は戦略の順序付きリストとして表現され、リトライで包まれた上で評価される。
// 公開操作はエラーを返さない。全ての試行が失敗した場合は操作ごとに定められた
// 既定値（nil、false、0、空スライス）を返し、その事実をログとメトリクスに記録する。
package user

import (
	"log/slog"
	"time"

	"github.com/hitoshi/userdir/internal/backend"
	"github.com/hitoshi/userdir/internal/metrics"
	"github.com/hitoshi/userdir/internal/retry"
	"golang.org/x/time/rate"
)

// 操作名。ログのoperation属性とメトリクスのラベルに使用する。
const (
	opGetUserByID        = "get_user_by_id"
	opGetUserByEmail     = "get_user_by_email"
	opCheckUserExists    = "check_user_exists"
	opGetUsersByIDs      = "get_users_by_ids"
	opDailyNewUsersCount = "get_daily_new_users_count"
	opUserRetentionCount = "get_user_retention_count"
	opStatisticsSummary  = "get_user_statistics_summary"
)

// defaultRetentionDays は留存統計の既定の日数。
const defaultRetentionDays = 7

// Sanitizer はバックエンドから受け取ったプロフィール値を無害化する。
type Sanitizer interface {
	DisplayName(raw string) string
	AvatarURL(raw string) string
}

// ServiceConfig はServiceの動作設定。
type ServiceConfig struct {
	// Retry は各操作に適用するリトライポリシー。
	Retry retry.Policy
	// Metrics はリトライ・戦略・既定値応答の記録先。nilの場合は記録しない。
	Metrics metrics.MetricsCollector
	// Sanitizer は表示名とアバターURLの無害化に使う。nilの場合は値をそのまま使う。
	Sanitizer Sanitizer
	// BatchRate は一括取得時の個別呼び出しの上限レート（毎秒）。0以下で無制限。
	BatchRate rate.Limit
	// BatchBurst は一括取得時のバースト数。1未満は1として扱う。
	BatchBurst int
	// Location は日付省略時に「今日」を決めるタイムゾーン。nilの場合はtime.Local。
	Location *time.Location
	// Now は現在時刻の取得関数。nilの場合はtime.Now。
	Now func() time.Time
}

// Service はユーザーディレクトリの読み取りサービス。
// 呼び出し間で可変状態を共有しないため、複数goroutineから同時に利用できる。
type Service struct {
	client       backend.Client
	logger       *slog.Logger
	policy       retry.Policy
	metrics      metrics.MetricsCollector
	sanitizer    Sanitizer
	batchLimiter *rate.Limiter
	location     *time.Location
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client backend.Client, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var limiter *rate.Limiter
	if cfg.BatchRate > 0 {
		limiter = rate.NewLimiter(cfg.BatchRate, max(cfg.BatchBurst, 1))
	}

	return &Service{
		client:       client,
		logger:       logger,
		policy:       cfg.Retry,
		metrics:      cfg.Metrics,
		sanitizer:    cfg.Sanitizer,
		batchLimiter: limiter,
		location:     cfg.Location,
		now:          cfg.Now,
	}
}
