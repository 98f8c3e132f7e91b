package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/userdir/internal/retry"
)

// Lazy はプロセス全体で共有するクライアントを初回利用時に1度だけ生成するハンドル。
// 生成に失敗した場合はそのエラーを保持し、以降の呼び出しでも同じエラーを
// リトライ不要なエラーとして返す。
type Lazy struct {
	get func() (Client, error)
}

// NewLazy はconstructorを初回呼び出し時に1度だけ実行するLazyを生成する。
func NewLazy(constructor func() (Client, error)) *Lazy {
	return &Lazy{get: sync.OnceValues(constructor)}
}

// Get は生成済みのクライアントを返す。未生成の場合はここで生成する。
func (l *Lazy) Get() (Client, error) {
	c, err := l.get()
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("バックエンドクライアントの初期化に失敗しました: %w", err))
	}
	return c, nil
}

// CallProcedure は生成済みクライアントに委譲する。
func (l *Lazy) CallProcedure(ctx context.Context, name string, params Params) (json.RawMessage, error) {
	c, err := l.Get()
	if err != nil {
		return nil, err
	}
	return c.CallProcedure(ctx, name, params)
}

// Count は生成済みクライアントに委譲する。
func (l *Lazy) Count(ctx context.Context, q *CountQuery) (int, error) {
	c, err := l.Get()
	if err != nil {
		return 0, err
	}
	return c.Count(ctx, q)
}

// CallRecorder はバックエンド呼び出しの結果を記録するインターフェース。
type CallRecorder interface {
	RecordBackendCall(target string, outcome string, duration time.Duration)
}

// 呼び出し結果のラベル値
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// instrumented はClientの呼び出しごとにCallRecorderへ結果を記録するラッパー。
type instrumented struct {
	next     Client
	recorder CallRecorder
}

// WithRecorder はnextの呼び出し結果をrecorderに記録するClientを返す。
// recorderがnilの場合はnextをそのまま返す。
func WithRecorder(next Client, recorder CallRecorder) Client {
	if recorder == nil {
		return next
	}
	return &instrumented{next: next, recorder: recorder}
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

func (i *instrumented) CallProcedure(ctx context.Context, name string, params Params) (json.RawMessage, error) {
	start := time.Now()
	raw, err := i.next.CallProcedure(ctx, name, params)
	i.recorder.RecordBackendCall(name, outcomeOf(err), time.Since(start))
	return raw, err
}

func (i *instrumented) Count(ctx context.Context, q *CountQuery) (int, error) {
	start := time.Now()
	n, err := i.next.Count(ctx, q)
	target := "count"
	if q != nil {
		target = q.Schema + "." + q.Table
	}
	i.recorder.RecordBackendCall(target, outcomeOf(err), time.Since(start))
	return n, err
}

// timeoutClient は呼び出しごとにタイムアウトを設定するラッパー。
type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout はnextの各呼び出しにtimeoutの期限を設定するClientを返す。
// timeoutが0以下の場合はnextをそのまま返す。
func WithTimeout(next Client, timeout time.Duration) Client {
	if timeout <= 0 {
		return next
	}
	return &timeoutClient{next: next, timeout: timeout}
}

func (c *timeoutClient) CallProcedure(ctx context.Context, name string, params Params) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.CallProcedure(ctx, name, params)
}

func (c *timeoutClient) Count(ctx context.Context, q *CountQuery) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.Count(ctx, q)
}

// compile-time interface check
var (
	_ Client = (*Lazy)(nil)
	_ Client = (*instrumented)(nil)
	_ Client = (*timeoutClient)(nil)
)
