package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/userdir/internal/backend"
	"github.com/hitoshi/userdir/internal/model"
)

// 戦略名
const (
	strategySearch = "search"
	strategyDirect = "direct"
)

// searchResultLimit は汎用検索プロシージャに渡す取得件数。
const searchResultLimit = 1

// GetUserByID はIDでユーザーを取得する。見つからない場合はnilを返す。
// 汎用検索で完全一致を探し、見つからなければID指定の専用プロシージャを試す。
func (s *Service) GetUserByID(ctx context.Context, id string) *model.UserRecord {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	c := s.newCall(opGetUserByID, slog.String("user_id", id))
	return resolve(ctx, s, c, (*model.UserRecord)(nil), func(ctx context.Context) (*model.UserRecord, error) {
		rec, found, err := runChain(ctx, c, []strategy[*model.UserRecord]{
			{name: strategySearch, run: s.searchByID(id)},
			{name: strategyDirect, run: s.directRecord(backend.ProcGetAuthUserByID, backend.Params{"user_id_param": id}, matchID(id))},
		})
		if err != nil {
			return nil, err
		}
		if !found {
			c.logger.Info("ユーザーが見つかりません", slog.String("operation", c.op))
		}
		return rec, nil
	})
}

// GetUserByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
// メールアドレスは前後の空白を除去し、大文字小文字を区別せずに比較する。
func (s *Service) GetUserByEmail(ctx context.Context, email string) *model.UserRecord {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	c := s.newCall(opGetUserByEmail, slog.String("email", email))
	return resolve(ctx, s, c, (*model.UserRecord)(nil), func(ctx context.Context) (*model.UserRecord, error) {
		rec, found, err := runChain(ctx, c, []strategy[*model.UserRecord]{
			{name: strategySearch, run: s.searchFirst(email, matchEmail(email))},
			{name: strategyDirect, run: s.directRecord(backend.ProcGetAuthUserByEmail, backend.Params{"email_param": email}, matchEmail(email))},
		})
		if err != nil {
			return nil, err
		}
		if !found {
			c.logger.Info("ユーザーが見つかりません", slog.String("operation", c.op))
		}
		return rec, nil
	})
}

// CheckUserExists はIDのユーザーが存在するかを返す。
func (s *Service) CheckUserExists(ctx context.Context, id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}

	c := s.newCall(opCheckUserExists, slog.String("user_id", id))
	return resolve(ctx, s, c, false, func(ctx context.Context) (bool, error) {
		exists, _, err := runChain(ctx, c, []strategy[bool]{
			{name: strategySearch, run: func(ctx context.Context) (bool, bool, error) {
				_, found, err := s.searchByID(id)(ctx)
				return found, found, err
			}},
			{name: strategyDirect, run: func(ctx context.Context) (bool, bool, error) {
				raw, err := s.client.CallProcedure(ctx, backend.ProcCheckAuthUserExists, backend.Params{"user_id_param": id})
				if err != nil {
					return false, false, err
				}
				exists, err := backend.DecodeBool(raw)
				if err != nil {
					return false, false, err
				}
				return exists, exists, nil
			}},
		})
		return exists, err
	})
}

// GetUserBasicInfo はIDで取得したユーザーの基本情報を返す。見つからない場合はnilを返す。
func (s *Service) GetUserBasicInfo(ctx context.Context, id string) *model.BasicUserInfo {
	return s.GetUserByID(ctx, id).Basic()
}

// recordMatcher は正規化済みレコードが問い合わせに完全一致するかを判定する。
type recordMatcher func(rec *model.UserRecord) bool

func matchID(id string) recordMatcher {
	return func(rec *model.UserRecord) bool {
		return rec.ID == id
	}
}

func matchEmail(email string) recordMatcher {
	return func(rec *model.UserRecord) bool {
		return strings.EqualFold(strings.TrimSpace(rec.Email), email)
	}
}

// searchByID はIDの完全一致を汎用検索で探す戦略を返す。
func (s *Service) searchByID(id string) func(ctx context.Context) (*model.UserRecord, bool, error) {
	return s.searchFirst(id, matchID(id))
}

// searchFirst は汎用検索プロシージャをtermで呼び出し、matchに一致する最初の行を返す戦略を返す。
func (s *Service) searchFirst(term string, match recordMatcher) func(ctx context.Context) (*model.UserRecord, bool, error) {
	return func(ctx context.Context) (*model.UserRecord, bool, error) {
		raw, err := s.client.CallProcedure(ctx, backend.ProcSearchUsersWithAuth, backend.Params{
			"search_term":  term,
			"result_limit": searchResultLimit,
		})
		if err != nil {
			return nil, false, err
		}
		rows, err := backend.DecodeRows(raw)
		if err != nil {
			return nil, false, fmt.Errorf("検索結果のデコードに失敗しました: %w", err)
		}
		for _, row := range rows {
			if rec := s.normalizeRow(row); rec != nil && match(rec) {
				return rec, true, nil
			}
		}
		return nil, false, nil
	}
}

// directRecord はレコードを直接返す専用プロシージャを呼び出す戦略を返す。
func (s *Service) directRecord(proc string, params backend.Params, match recordMatcher) func(ctx context.Context) (*model.UserRecord, bool, error) {
	return func(ctx context.Context) (*model.UserRecord, bool, error) {
		raw, err := s.client.CallProcedure(ctx, proc, params)
		if err != nil {
			return nil, false, err
		}
		row, ok, err := backend.DecodeRecord(raw)
		if err != nil {
			return nil, false, fmt.Errorf("%sの結果のデコードに失敗しました: %w", proc, err)
		}
		if !ok {
			return nil, false, nil
		}
		rec := s.normalizeRow(row)
		if rec == nil || !match(rec) {
			return nil, false, nil
		}
		return rec, true, nil
	}
}
