package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hitoshi/userdir/internal/retry"
	"github.com/lib/pq"
)

// Querier はQueryRowContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres はPostgreSQLに直接接続するバックエンド実装。
// リモートプロシージャはストアド関数として名前付き引数で呼び出す。
type Postgres struct {
	db     Querier
	schema string
}

// NewPostgres はPostgresバックエンドを生成する。
// schemaが空の場合はpublicスキーマの関数を呼び出す。
func NewPostgres(db Querier, schema string) *Postgres {
	if schema == "" {
		schema = defaultProcedureSchema
	}
	return &Postgres{db: db, schema: schema}
}

// buildProcedureQuery はストアド関数呼び出しのSQLと引数を構築する。
// 引数は名前順に並べ、結果は常にJSON配列として集約する。
func buildProcedureQuery(schema, name string, params Params) (string, []any, error) {
	if !validIdentifier(schema) || !validIdentifier(name) {
		return "", nil, fmt.Errorf("invalid procedure identifier: %s.%s", schema, name)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if !validIdentifier(k) {
			return "", nil, fmt.Errorf("invalid parameter name: %s", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys))
	named := make([]string, 0, len(keys))
	for i, k := range keys {
		named = append(named, fmt.Sprintf("%s => $%d", pq.QuoteIdentifier(k), i+1))
		args = append(args, params[k])
	}

	query := fmt.Sprintf(
		`SELECT COALESCE(json_agg(r), '[]'::json) FROM %s.%s(%s) AS r`,
		pq.QuoteIdentifier(schema), pq.QuoteIdentifier(name), strings.Join(named, ", "),
	)
	return query, args, nil
}

// buildCountQuery は範囲条件付きの件数取得SQLと引数を構築する。
func buildCountQuery(q *CountQuery) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var conds []string
	args := make([]any, 0, len(q.Filters))
	for i, f := range q.Filters {
		op := ">="
		if f.Op == "lte" {
			op = "<="
		}
		conds = append(conds, fmt.Sprintf("%s %s $%d", pq.QuoteIdentifier(f.Column), op, i+1))
		args = append(args, f.Value.UTC())
	}

	query := fmt.Sprintf(`SELECT count(*) FROM %s.%s`, pq.QuoteIdentifier(q.Schema), pq.QuoteIdentifier(q.Table))
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query, args, nil
}

// CallProcedure はストアド関数を呼び出し、結果をJSON配列で返す。
func (p *Postgres) CallProcedure(ctx context.Context, name string, params Params) (json.RawMessage, error) {
	query, args, err := buildProcedureQuery(p.schema, name, params)
	if err != nil {
		return nil, retry.Permanent(&Error{Procedure: name, Message: "invalid procedure call", Err: err})
	}

	var payload []byte
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		return nil, &Error{Procedure: name, Err: err}
	}
	return json.RawMessage(payload), nil
}

// Count は範囲条件に一致する行数を返す。
func (p *Postgres) Count(ctx context.Context, q *CountQuery) (int, error) {
	query, args, err := buildCountQuery(q)
	if err != nil {
		return 0, retry.Permanent(&Error{Procedure: "count", Message: "invalid count query", Err: err})
	}

	var count int
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &Error{Procedure: q.Schema + "." + q.Table, Err: err}
	}
	return count, nil
}

// compile-time interface check
var _ Client = (*Postgres)(nil)
