// Package retry は単発の操作を上限付きの回数だけ再試行する汎用リトライポリシーを提供する。
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy はリトライポリシーの設定。
type Policy struct {
	// MaxAttempts は最大試行回数（初回を含む）。1未満は1として扱う。
	MaxAttempts int
	// InitialBackoff は初回リトライ前の待機時間。0の場合は待機しない。
	InitialBackoff time.Duration
	// MaxBackoff はバックオフ待機時間の上限。
	MaxBackoff time.Duration
}

// DefaultPolicy はデフォルトのリトライポリシー（3回、100ms開始、最大2秒）を返す。
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Observer はリトライの進行を観測するフック。メトリクス収集に利用する。
type Observer interface {
	RecordAttemptFailure(operation string)
	RecordExhausted(operation string)
}

// ExhaustedError は全ての試行が失敗したことを表すエラー。
// 操作名と最後の試行のエラーを保持する。
type ExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d回の試行がすべて失敗しました: %v", e.Operation, e.Attempts, e.Err)
}

// Unwrap は最後の試行のエラーを返す。
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// permanentError はリトライ不要のエラーを表すラッパー。
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent はerrをリトライ不要なエラーとしてマークする。nilはnilのまま返す。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent はerrがPermanentでマークされているかを返す。
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Retrier はロガーとオブザーバーを束ねたリトライ実行器。
type Retrier struct {
	policy   Policy
	logger   *slog.Logger
	observer Observer
}

// New はRetrierを生成する。observerはnilでもよい。
func New(policy Policy, logger *slog.Logger, observer Observer) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{policy: policy, logger: logger, observer: observer}
}

// Policy は設定済みのリトライポリシーを返す。
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do はfnを最大MaxAttempts回実行する。成功した時点で即座に値を返す。
// 失敗のたびに試行番号とエラーをWARNで記録し、全試行が失敗した場合は*ExhaustedErrorを返す。
// Permanentでマークされたエラーやコンテキストのキャンセルでは残りの試行を打ち切る。
func Do[T any](ctx context.Context, r *Retrier, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := r.policy.attempts()

	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		r.logger.Warn("操作の試行に失敗しました",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.String("error", err.Error()),
		)
		if r.observer != nil {
			r.observer.RecordAttemptFailure(operation)
		}

		if IsPermanent(err) || attempt >= maxAttempts {
			break
		}
		if err := sleep(ctx, CalculateBackoff(attempt, r.policy.InitialBackoff, r.policy.MaxBackoff)); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	if r.observer != nil {
		r.observer.RecordExhausted(operation)
	}
	return zero, &ExhaustedError{Operation: operation, Attempts: attempt, Err: lastErr}
}

// sleep はdelayだけ待機する。待機中にコンテキストが終了した場合はそのエラーを返す。
func sleep(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
