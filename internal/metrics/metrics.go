// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// バックエンドクライアント、リトライ、解決処理から利用する。
type MetricsCollector interface {
	RecordBackendCall(target string, outcome string, duration time.Duration)
	RecordAttemptFailure(operation string)
	RecordExhausted(operation string)
	RecordStrategyHit(operation string, strategy string)
	RecordDegraded(operation string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	backendCalls   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	retryFailures  *prometheus.CounterVec
	retryExhausted *prometheus.CounterVec
	strategyHits   *prometheus.CounterVec
	degraded       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdir_backend_calls_total",
			Help: "バックエンド呼び出しの合計数（対象・結果別）",
		}, []string{"target", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "userdir_backend_latency_seconds",
			Help:    "バックエンド呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),
		retryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdir_retry_attempt_failures_total",
			Help: "リトライ対象操作の試行失敗の合計数",
		}, []string{"operation"}),
		retryExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdir_retry_exhausted_total",
			Help: "全試行が失敗した操作の合計数",
		}, []string{"operation"}),
		strategyHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdir_strategy_hits_total",
			Help: "解決に成功した戦略別の合計数",
		}, []string{"operation", "strategy"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdir_degraded_results_total",
			Help: "既定値で応答した操作の合計数",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.backendCalls,
		c.backendLatency,
		c.retryFailures,
		c.retryExhausted,
		c.strategyHits,
		c.degraded,
	)

	return c
}

// RecordBackendCall はバックエンド呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordBackendCall(target string, outcome string, duration time.Duration) {
	c.backendCalls.WithLabelValues(target, outcome).Inc()
	c.backendLatency.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordAttemptFailure は試行の失敗を記録する。
func (c *Collector) RecordAttemptFailure(operation string) {
	c.retryFailures.WithLabelValues(operation).Inc()
}

// RecordExhausted は全試行の失敗を記録する。
func (c *Collector) RecordExhausted(operation string) {
	c.retryExhausted.WithLabelValues(operation).Inc()
}

// RecordStrategyHit は結果を返した戦略を記録する。
func (c *Collector) RecordStrategyHit(operation string, strategy string) {
	c.strategyHits.WithLabelValues(operation, strategy).Inc()
}

// RecordDegraded は既定値での応答を記録する。
func (c *Collector) RecordDegraded(operation string) {
	c.degraded.WithLabelValues(operation).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordBackendCall(string, string, time.Duration) {}
func (Nop) RecordAttemptFailure(string)                     {}
func (Nop) RecordExhausted(string)                          {}
func (Nop) RecordStrategyHit(string, string)                {}
func (Nop) RecordDegraded(string)                           {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
