package user

import (
	"context"
	"log/slog"
)

// strategy は解決処理の候補となる1つの手段。
// runは(値, 見つかったか, エラー)を返す。
type strategy[T any] struct {
	name string
	run  func(ctx context.Context) (T, bool, error)
}

// runChain は戦略を先頭から順に評価し、最初に見つかった値を返す。
//
// 先頭の戦略（主戦略）が見つけた場合は後続を評価しない。
// 2番目以降の戦略（補助戦略）の失敗はDEBUGで記録して握りつぶす。
// どの戦略も見つけられず主戦略が失敗していた場合は主戦略のエラーを返し、
// 呼び出し側のリトライに判断を委ねる。主戦略の失敗後に補助戦略が見つけた場合は
// 主戦略の失敗をWARNで記録した上で補助戦略の値を返す。
func runChain[T any](ctx context.Context, c *call, strategies []strategy[T]) (T, bool, error) {
	var zero T
	var primaryErr error

	for i, st := range strategies {
		v, found, err := st.run(ctx)
		if err != nil {
			if i == 0 {
				primaryErr = err
				continue
			}
			c.logger.Debug("補助戦略の呼び出しに失敗しました",
				slog.String("operation", c.op),
				slog.String("strategy", st.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !found {
			continue
		}

		if primaryErr != nil {
			c.logger.Warn("主戦略が失敗したため補助戦略で解決しました",
				slog.String("operation", c.op),
				slog.String("strategy", st.name),
				slog.String("error", primaryErr.Error()),
			)
		}
		c.logger.Info("解決しました",
			slog.String("operation", c.op),
			slog.String("strategy", st.name),
		)
		c.metrics.RecordStrategyHit(c.op, st.name)
		return v, true, nil
	}

	return zero, false, primaryErr
}
