// Package backend はリモートのユーザーディレクトリに対する読み取り専用クライアントを提供する。
// 名前付きリモートプロシージャの呼び出しと、タイムスタンプ範囲で絞り込んだ件数取得の2種類の呼び出しを扱う。
// 認証情報はサービスロールを前提とし、行レベルの制限は受けない。
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// リモートプロシージャ名
const (
	ProcSearchUsersWithAuth   = "search_users_with_auth"
	ProcGetAuthUserByID       = "get_auth_user_by_id"
	ProcGetAuthUserByEmail    = "get_auth_user_by_email"
	ProcCheckAuthUserExists   = "check_auth_user_exists"
	ProcGetDailyNewUsersCount = "get_daily_new_users_count"
	ProcGetUserRetentionCount = "get_user_retention_count"
)

// defaultProcedureSchema はリモートプロシージャが定義されているスキーマ。
const defaultProcedureSchema = "public"

// Params はリモートプロシージャの名前付き引数。
type Params map[string]any

// Client はユーザーディレクトリのバックエンドクライアント。
// 実装は複数goroutineから同時に利用できなければならない。
type Client interface {
	// CallProcedure は名前付きリモートプロシージャを呼び出し、結果のJSONをそのまま返す。
	// 結果は行の配列、単一オブジェクト、スカラー、nullのいずれかになりうる。
	CallProcedure(ctx context.Context, name string, params Params) (json.RawMessage, error)

	// Count は範囲条件に一致する行数を返す。
	Count(ctx context.Context, q *CountQuery) (int, error)
}

// Error はバックエンド呼び出しの失敗を表す。
type Error struct {
	Procedure  string // 呼び出したプロシージャ名またはテーブル名
	StatusCode int    // HTTPバックエンドの場合のステータスコード（SQLバックエンドでは0）
	Message    string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s failed with status %d: %s", e.Procedure, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("backend %s failed: %v", e.Procedure, e.Err)
	}
	return fmt.Sprintf("backend %s failed: %s", e.Procedure, e.Message)
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdentifier はプロシージャ名・列名として安全な識別子かを判定する。
func validIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// RangeFilter はタイムスタンプ列に対する範囲条件。
type RangeFilter struct {
	Column string
	Op     string // "gte" または "lte"
	Value  time.Time
}

// CountQuery は件数取得クエリのビルダー。
// タイムスタンプ列に対する範囲条件のみをサポートする。
type CountQuery struct {
	Schema  string
	Table   string
	Filters []RangeFilter
}

// From は schema.table を対象とする件数取得クエリを生成する。
func From(schema, table string) *CountQuery {
	return &CountQuery{Schema: schema, Table: table}
}

// Gte は column >= t の条件を追加する。
func (q *CountQuery) Gte(column string, t time.Time) *CountQuery {
	q.Filters = append(q.Filters, RangeFilter{Column: column, Op: "gte", Value: t})
	return q
}

// Lte は column <= t の条件を追加する。
func (q *CountQuery) Lte(column string, t time.Time) *CountQuery {
	q.Filters = append(q.Filters, RangeFilter{Column: column, Op: "lte", Value: t})
	return q
}

// Validate はクエリの識別子と演算子を検証する。
func (q *CountQuery) Validate() error {
	if q == nil {
		return fmt.Errorf("count query is nil")
	}
	if !validIdentifier(q.Schema) || !validIdentifier(q.Table) {
		return fmt.Errorf("invalid table identifier: %s.%s", q.Schema, q.Table)
	}
	for _, f := range q.Filters {
		if !validIdentifier(f.Column) {
			return fmt.Errorf("invalid column identifier: %s", f.Column)
		}
		if f.Op != "gte" && f.Op != "lte" {
			return fmt.Errorf("unsupported filter operator: %s", f.Op)
		}
	}
	return nil
}
