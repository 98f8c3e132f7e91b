package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue は指定メトリクスのラベル値に一致するカウンタ値を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					matched = false
				}
			}
			if matched {
				return m.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordBackendCall_CountsByTargetAndOutcome はバックエンド呼び出しが対象・結果別に集計されることを検証する。
func TestRecordBackendCall_CountsByTargetAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBackendCall("search_users_with_auth", "success", 10*time.Millisecond)
	c.RecordBackendCall("search_users_with_auth", "success", 20*time.Millisecond)
	c.RecordBackendCall("search_users_with_auth", "error", 5*time.Millisecond)

	val, found := counterValue(t, reg, "userdir_backend_calls_total", map[string]string{
		"target": "search_users_with_auth", "outcome": "success",
	})
	if !found {
		t.Fatal("userdir_backend_calls_total metric not found")
	}
	if val != 2 {
		t.Errorf("backend_calls_total{outcome=success} = %v, want 2", val)
	}

	val, _ = counterValue(t, reg, "userdir_backend_calls_total", map[string]string{
		"target": "search_users_with_auth", "outcome": "error",
	})
	if val != 1 {
		t.Errorf("backend_calls_total{outcome=error} = %v, want 1", val)
	}
}

// TestRecordBackendCall_ObservesLatency はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordBackendCall_ObservesLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBackendCall("auth.users", "success", 100*time.Millisecond)
	c.RecordBackendCall("auth.users", "success", 2*time.Second)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "userdir_backend_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("userdir_backend_latency_seconds metric not found")
	}
}

// TestRecordRetry_IncrementsCounters はリトライ関連のカウンタが増加することを検証する。
func TestRecordRetry_IncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAttemptFailure("get_user_by_id")
	c.RecordAttemptFailure("get_user_by_id")
	c.RecordExhausted("get_user_by_id")

	if val, _ := counterValue(t, reg, "userdir_retry_attempt_failures_total", map[string]string{"operation": "get_user_by_id"}); val != 2 {
		t.Errorf("retry_attempt_failures_total = %v, want 2", val)
	}
	if val, _ := counterValue(t, reg, "userdir_retry_exhausted_total", map[string]string{"operation": "get_user_by_id"}); val != 1 {
		t.Errorf("retry_exhausted_total = %v, want 1", val)
	}
}

// TestRecordStrategyHit_LabelsByStrategy は戦略別に集計されることを検証する。
func TestRecordStrategyHit_LabelsByStrategy(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStrategyHit("get_user_by_email", "search")
	c.RecordStrategyHit("get_user_by_email", "direct")
	c.RecordStrategyHit("get_user_by_email", "direct")

	if val, _ := counterValue(t, reg, "userdir_strategy_hits_total", map[string]string{"strategy": "direct"}); val != 2 {
		t.Errorf("strategy_hits_total{strategy=direct} = %v, want 2", val)
	}
	if val, _ := counterValue(t, reg, "userdir_strategy_hits_total", map[string]string{"strategy": "search"}); val != 1 {
		t.Errorf("strategy_hits_total{strategy=search} = %v, want 1", val)
	}
}

// TestRecordDegraded_IncrementsCounter は既定値応答のカウンタが増加することを検証する。
func TestRecordDegraded_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDegraded("get_users_by_ids")

	val, found := counterValue(t, reg, "userdir_degraded_results_total", map[string]string{"operation": "get_users_by_ids"})
	if !found {
		t.Fatal("userdir_degraded_results_total metric not found")
	}
	if val != 1 {
		t.Errorf("degraded_results_total = %v, want 1", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBackendCall("search_users_with_auth", "success", 50*time.Millisecond)
	c.RecordAttemptFailure("get_user_by_id")
	c.RecordExhausted("get_user_by_id")
	c.RecordStrategyHit("get_user_by_id", "search")
	c.RecordDegraded("get_user_by_id")

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"userdir_backend_calls_total",
		"userdir_backend_latency_seconds",
		"userdir_retry_attempt_failures_total",
		"userdir_retry_exhausted_total",
		"userdir_strategy_hits_total",
		"userdir_degraded_results_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordDegraded("op")
	c2.RecordDegraded("op")
	c2.RecordDegraded("op")

	val1, _ := counterValue(t, reg1, "userdir_degraded_results_total", nil)
	val2, _ := counterValue(t, reg2, "userdir_degraded_results_total", nil)

	if val1 != 1 {
		t.Errorf("reg1 degraded = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 degraded = %v, want 2", val2)
	}
}

// TestNop_DoesNotPanic はNopが全メソッドを安全に受け付けることを検証する。
func TestNop_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordBackendCall("x", "success", time.Second)
	c.RecordAttemptFailure("x")
	c.RecordExhausted("x")
	c.RecordStrategyHit("x", "y")
	c.RecordDegraded("x")
}
