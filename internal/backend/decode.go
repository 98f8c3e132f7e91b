package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Row はバックエンドから返された1行分のデータ。
type Row map[string]any

// unwrapSingle は要素1件の配列を要素そのものに展開する。
// SQLバックエンドはスカラー結果も配列で返すため、両方の形を同一視する。
func unwrapSingle(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return trimmed, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("failed to decode array payload: %w", err)
	}
	switch len(items) {
	case 0:
		return json.RawMessage("null"), nil
	case 1:
		return bytes.TrimSpace(items[0]), nil
	default:
		return nil, fmt.Errorf("expected a single value, got %d", len(items))
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeRows は結果を行のスライスとしてデコードする。
// nullは空、単一オブジェクトは1行として扱う。
func DecodeRows(raw json.RawMessage) ([]Row, error) {
	if isNull(raw) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '{' {
		var row Row
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		return []Row{row}, nil
	}
	var rows []Row
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return rows, nil
}

// DecodeRecord は結果を単一レコードとしてデコードする。
// レコードが存在しない場合は (nil, false, nil) を返す。
func DecodeRecord(raw json.RawMessage) (Row, bool, error) {
	v, err := unwrapSingle(raw)
	if err != nil {
		return nil, false, err
	}
	if isNull(v) {
		return nil, false, nil
	}
	var row Row
	if err := json.Unmarshal(v, &row); err != nil {
		return nil, false, fmt.Errorf("failed to decode record: %w", err)
	}
	// SQLバックエンドでjsonを返す関数は列名付きの行になる: {"get_auth_user_by_id": {...}}
	if len(row) == 1 {
		for _, inner := range row {
			switch v := inner.(type) {
			case nil:
				return nil, false, nil
			case map[string]any:
				row = v
			}
		}
	}
	if len(row) == 0 {
		return nil, false, nil
	}
	return row, true, nil
}

// DecodeBool は結果を真偽値としてデコードする。nullはfalseとして扱う。
func DecodeBool(raw json.RawMessage) (bool, error) {
	v, err := unwrapSingle(raw)
	if err != nil {
		return false, err
	}
	if isNull(v) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b, nil
	}
	// SQLバックエンドで列名付きの行として返る場合: {"check_auth_user_exists": true}
	var row map[string]bool
	if err := json.Unmarshal(v, &row); err == nil && len(row) == 1 {
		for _, b := range row {
			return b, nil
		}
	}
	return false, fmt.Errorf("failed to decode boolean payload: %s", string(v))
}

// DecodeInt は結果を整数としてデコードする。nullは0として扱う。
// 数値、数値文字列、列名付きの1列行のいずれも受け付ける。
func DecodeInt(raw json.RawMessage) (int, error) {
	v, err := unwrapSingle(raw)
	if err != nil {
		return 0, err
	}
	if isNull(v) {
		return 0, nil
	}
	return decodeScalarInt(v)
}

func decodeScalarInt(v json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return numberToInt(n)
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return numberToInt(json.Number(s))
	}
	var row map[string]json.RawMessage
	if err := json.Unmarshal(v, &row); err == nil && len(row) == 1 {
		for _, inner := range row {
			if isNull(inner) {
				return 0, nil
			}
			return decodeScalarInt(inner)
		}
	}
	return 0, fmt.Errorf("failed to decode integer payload: %s", string(v))
}

func numberToInt(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value %q: %w", n.String(), err)
	}
	return int(f), nil
}
