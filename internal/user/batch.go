package user

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/userdir/internal/model"
)

// GetUsersByIDs は複数のIDでユーザーを取得する。
// 入力は前後の空白を除去し、空のIDを除いて重複を排除する。出力の順序は保証しない。
// 個々のIDは汎用検索のみで解決し、失敗したIDは記録した上で読み飛ばす。
// 全体が失敗した場合は空スライスを返す。
func (s *Service) GetUsersByIDs(ctx context.Context, ids []string) []model.UserRecord {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []model.UserRecord{}
	}

	c := s.newCall(opGetUsersByIDs, slog.Int("user_ids_count", len(ids)))
	return resolve(ctx, s, c, []model.UserRecord{}, func(ctx context.Context) ([]model.UserRecord, error) {
		users := make([]model.UserRecord, 0, len(unique))
		for _, id := range unique {
			if s.batchLimiter != nil {
				if err := s.batchLimiter.Wait(ctx); err != nil {
					return nil, err
				}
			}

			rec, found, err := s.searchByID(id)(ctx)
			if err != nil {
				c.logger.Warn("一括取得で個別のユーザー取得に失敗しました",
					slog.String("operation", c.op),
					slog.String("user_id", id),
					slog.String("error", err.Error()),
				)
				continue
			}
			if found {
				users = append(users, *rec)
			}
		}

		c.logger.Info("一括取得が完了しました",
			slog.String("operation", c.op),
			slog.Int("requested", len(unique)),
			slog.Int("found", len(users)),
		)
		return users, nil
	})
}

// uniqueIDs は前後の空白を除去した空でないIDを、最初に現れた順で重複なく返す。
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
