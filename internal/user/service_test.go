package user

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/userdir/internal/backend"
	"github.com/hitoshi/userdir/internal/retry"
)

// --- モック ---

type procCall struct {
	name   string
	params backend.Params
}

// mockClient はbackend.Clientのモック実装。呼び出し履歴を記録する。
type mockClient struct {
	mu      sync.Mutex
	calls   []procCall
	counts  []*backend.CountQuery
	callFn  func(ctx context.Context, name string, params backend.Params) (json.RawMessage, error)
	countFn func(ctx context.Context, q *backend.CountQuery) (int, error)
}

func (m *mockClient) CallProcedure(ctx context.Context, name string, params backend.Params) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, procCall{name: name, params: params})
	m.mu.Unlock()
	if m.callFn != nil {
		return m.callFn(ctx, name, params)
	}
	return json.RawMessage("null"), nil
}

func (m *mockClient) Count(ctx context.Context, q *backend.CountQuery) (int, error) {
	m.mu.Lock()
	m.counts = append(m.counts, q)
	m.mu.Unlock()
	if m.countFn != nil {
		return m.countFn(ctx, q)
	}
	return 0, nil
}

// callsTo は指定プロシージャの呼び出し履歴を返す。
func (m *mockClient) callsTo(name string) []procCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []procCall
	for _, c := range m.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockClient) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls) + len(m.counts)
}

// mockMetrics はmetrics.MetricsCollectorのモック実装。
type mockMetrics struct {
	mu              sync.Mutex
	attemptFailures map[string]int
	exhausted       map[string]int
	strategyHits    map[string]int
	degraded        map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		attemptFailures: map[string]int{},
		exhausted:       map[string]int{},
		strategyHits:    map[string]int{},
		degraded:        map[string]int{},
	}
}

func (m *mockMetrics) RecordBackendCall(string, string, time.Duration) {}

func (m *mockMetrics) RecordAttemptFailure(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attemptFailures[op]++
}

func (m *mockMetrics) RecordExhausted(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted[op]++
}

func (m *mockMetrics) RecordStrategyHit(op, strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategyHits[op+"/"+strategy]++
}

func (m *mockMetrics) RecordDegraded(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded[op]++
}

// --- ヘルパー ---

// testEnv はテスト対象のServiceとその観測手段をまとめたもの。
type testEnv struct {
	svc     *Service
	client  *mockClient
	metrics *mockMetrics
	logs    *bytes.Buffer
}

// fixedNow はテストで使う現在時刻（2024-03-15 10:00 JST）。
var fixedNow = time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, client *mockClient) *testEnv {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := newMockMetrics()
	jst := time.FixedZone("JST", 9*60*60)

	svc := NewService(client, logger, ServiceConfig{
		Retry:    retry.Policy{MaxAttempts: 3},
		Metrics:  m,
		Location: jst,
		Now:      func() time.Time { return fixedNow },
	})
	return &testEnv{svc: svc, client: client, metrics: m, logs: &buf}
}

// logEntries は出力されたJSONログを1行ずつデコードして返す。
func (e *testEnv) logEntries(t *testing.T) []map[string]any {
	t.Helper()
	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(e.logs.Bytes()))
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("ログのパースに失敗: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

// logsAt は指定レベルのログを返す。
func (e *testEnv) logsAt(t *testing.T, level string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, entry := range e.logEntries(t) {
		if entry["level"] == level {
			out = append(out, entry)
		}
	}
	return out
}

// rowsJSON は行のスライスをJSONに変換する。
func rowsJSON(t *testing.T, rows ...map[string]any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(rows)
	if err != nil {
		t.Fatalf("JSONの生成に失敗: %v", err)
	}
	return b
}

func searchRow(id, email string) map[string]any {
	return map[string]any{
		"user_id":    id,
		"email":      email,
		"created_at": "2024-01-01T00:00:00Z",
		"raw_user_meta_data": map[string]any{
			"full_name": "Test User",
		},
	}
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(&mockClient{}, nil, ServiceConfig{})

	if svc.logger == nil {
		t.Error("loggerが設定されるべき")
	}
	if svc.metrics == nil {
		t.Error("metricsが設定されるべき")
	}
	if svc.location != time.Local {
		t.Errorf("location = %v, want Local", svc.location)
	}
	if svc.batchLimiter != nil {
		t.Error("BatchRateが0の場合はレート制限しないべき")
	}
}

func TestNewService_BatchRate(t *testing.T) {
	svc := NewService(&mockClient{}, nil, ServiceConfig{BatchRate: 5})

	if svc.batchLimiter == nil {
		t.Fatal("BatchRateが正の場合はレート制限するべき")
	}
	if svc.batchLimiter.Burst() != 1 {
		t.Errorf("burst = %d, want 1", svc.batchLimiter.Burst())
	}
}
