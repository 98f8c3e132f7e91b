package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/userdir/internal/backend"
	"github.com/hitoshi/userdir/internal/model"
)

// dateLayout は統計の対象日の書式（YYYY-MM-DD）。
const dateLayout = "2006-01-02"

// 戦略名
const (
	strategyRPC        = "rpc"
	strategyRangeCount = "range_count"
)

// 新規ユーザー数の直接集計に使うテーブル
const (
	usersSchema     = "auth"
	usersTable      = "users"
	createdAtColumn = "created_at"
)

// defaultBreakdownDays はGetRetentionBreakdownの既定の日数。
var defaultBreakdownDays = []int{1, 3, 7}

// resolveDate は対象日を解決する。空の場合はLocationにおける今日を使う。
// 戻り値の時刻はUTCの0時。
func (s *Service) resolveDate(date string) (time.Time, string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = s.now().In(s.location).Format(dateLayout)
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, "", model.NewInvalidDateError(date)
	}
	return day, day.Format(dateLayout), nil
}

// GetDailyNewUsersCount は対象日に登録したユーザー数を返す。dateが空の場合は今日。
// 集計プロシージャが失敗した場合はcreated_atの範囲指定で直接数える。
// 全て失敗した場合は0を返す。
func (s *Service) GetDailyNewUsersCount(ctx context.Context, date string) int {
	day, dateStr, err := s.resolveDate(date)
	if err != nil {
		c := s.newCall(opDailyNewUsersCount, slog.String("target_date", date))
		return degradeTo(c, 0, err)
	}

	c := s.newCall(opDailyNewUsersCount, slog.String("target_date", dateStr))
	return resolve(ctx, s, c, 0, func(ctx context.Context) (int, error) {
		n, _, err := runChain(ctx, c, []strategy[int]{
			{name: strategyRPC, run: s.countProcedure(backend.ProcGetDailyNewUsersCount, backend.Params{
				"target_date": dateStr,
			})},
			{name: strategyRangeCount, run: s.countCreatedOn(day)},
		})
		return n, err
	})
}

// GetUserRetentionCount は対象日より前に登録し、直近daysBack日以内にログインしたユーザー数を返す。
// daysBackが0以下の場合は7日。dateが空の場合は今日。
// 集計プロシージャ以外の手段はないため、失敗した場合は0を返す。
func (s *Service) GetUserRetentionCount(ctx context.Context, daysBack int, date string) int {
	if daysBack <= 0 {
		daysBack = defaultRetentionDays
	}

	_, dateStr, err := s.resolveDate(date)
	if err != nil {
		c := s.newCall(opUserRetentionCount, slog.String("target_date", date), slog.Int("days_back", daysBack))
		return degradeTo(c, 0, err)
	}

	c := s.newCall(opUserRetentionCount, slog.String("target_date", dateStr), slog.Int("days_back", daysBack))
	return resolve(ctx, s, c, 0, func(ctx context.Context) (int, error) {
		n, _, err := runChain(ctx, c, []strategy[int]{
			{name: strategyRPC, run: s.countProcedure(backend.ProcGetUserRetentionCount, backend.Params{
				"target_date": dateStr,
				"days_back":   daysBack,
			})},
		})
		return n, err
	})
}

// GetUserStatisticsSummary は対象日の新規ユーザー数と7日間の留存ユーザー数をまとめて返す。
// 対象日の解決に失敗した場合はtarget_dateを"unknown"とし、件数を0にする。
func (s *Service) GetUserStatisticsSummary(ctx context.Context, date string) (summary model.StatisticsSummary) {
	summary = model.StatisticsSummary{TargetDate: model.UnknownTargetDate}

	_, dateStr, err := s.resolveDate(date)
	if err != nil {
		c := s.newCall(opStatisticsSummary, slog.String("target_date", date))
		return degradeTo(c, summary, err)
	}
	summary.TargetDate = dateStr

	c := s.newCall(opStatisticsSummary, slog.String("target_date", dateStr))
	defer func() {
		if r := recover(); r != nil {
			summary = degradeTo(c, model.StatisticsSummary{TargetDate: dateStr}, fmt.Errorf("panic: %v", r))
		}
	}()

	summary.DailyNewUsers = s.GetDailyNewUsersCount(ctx, dateStr)
	summary.UserRetention7d = s.GetUserRetentionCount(ctx, defaultRetentionDays, dateStr)

	c.logger.Info("統計サマリーを集計しました",
		slog.String("operation", c.op),
		slog.Int("daily_new_users", summary.DailyNewUsers),
		slog.Int("user_retention_7d", summary.UserRetention7d),
	)
	return summary
}

// GetRetentionBreakdown は複数の日数について留存ユーザー数を返す。
// daysが空の場合は1日・3日・7日。
func (s *Service) GetRetentionBreakdown(ctx context.Context, date string, days ...int) map[int]int {
	if len(days) == 0 {
		days = defaultBreakdownDays
	}
	if _, dateStr, err := s.resolveDate(date); err == nil {
		date = dateStr
	}

	out := make(map[int]int, len(days))
	for _, d := range days {
		if d <= 0 {
			d = defaultRetentionDays
		}
		out[d] = s.GetUserRetentionCount(ctx, d, date)
	}
	return out
}

// countProcedure は整数を返す集計プロシージャを呼び出す戦略を返す。
func (s *Service) countProcedure(proc string, params backend.Params) func(ctx context.Context) (int, bool, error) {
	return func(ctx context.Context) (int, bool, error) {
		raw, err := s.client.CallProcedure(ctx, proc, params)
		if err != nil {
			return 0, false, err
		}
		n, err := backend.DecodeInt(raw)
		if err != nil {
			return 0, false, fmt.Errorf("%sの結果のデコードに失敗しました: %w", proc, err)
		}
		return max(n, 0), true, nil
	}
}

// countCreatedOn はdayの0:00:00.000から23:59:59.999（UTC）に作成されたユーザーを直接数える戦略を返す。
func (s *Service) countCreatedOn(day time.Time) func(ctx context.Context) (int, bool, error) {
	start := day.UTC()
	end := start.Add(24*time.Hour - time.Millisecond)
	return func(ctx context.Context) (int, bool, error) {
		n, err := s.client.Count(ctx, backend.From(usersSchema, usersTable).
			Gte(createdAtColumn, start).
			Lte(createdAtColumn, end))
		if err != nil {
			return 0, false, err
		}
		return max(n, 0), true, nil
	}
}
