package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hitoshi/userdir/internal/metrics"
	"github.com/hitoshi/userdir/internal/retry"
)

// call は1回の公開操作の実行単位。
// loggerにはop_idと入力値の属性が付与されており、その操作で出力する全てのログで共有する。
type call struct {
	op      string
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// newCall は操作opの実行単位を生成する。attrsは入力値としてログに付与する。
func (s *Service) newCall(op string, attrs ...any) *call {
	args := append([]any{slog.String("op_id", uuid.NewString())}, attrs...)
	return &call{
		op:      op,
		logger:  s.logger.With(args...),
		metrics: s.metrics,
	}
}

// resolve はfnをリトライで包んで実行し、最終的に失敗した場合はdefを返す。
// fn内のpanicも失敗として扱い、呼び出し側へは伝播させない。
func resolve[T any](ctx context.Context, s *Service, c *call, def T, fn func(ctx context.Context) (T, error)) (result T) {
	defer func() {
		if r := recover(); r != nil {
			result = degradeTo(c, def, fmt.Errorf("panic: %v", r))
		}
	}()

	v, err := retry.Do(ctx, retry.New(s.policy, c.logger, c.metrics), c.op, fn)
	if err != nil {
		return degradeTo(c, def, err)
	}
	return v
}

// degradeTo は失敗をERRORで記録し、既定値defを返す。
func degradeTo[T any](c *call, def T, err error) T {
	c.logger.Error("操作が失敗したため既定値を返します",
		slog.String("operation", c.op),
		slog.String("error", err.Error()),
	)
	c.metrics.RecordDegraded(c.op)
	return def
}
