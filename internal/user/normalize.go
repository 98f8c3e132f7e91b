package user

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/userdir/internal/backend"
	"github.com/hitoshi/userdir/internal/model"
)

// timestampLayouts はバックエンドが返しうるタイムスタンプの書式。
// PostgRESTはRFC3339、json_aggはタイムゾーン付きのISO形式、
// テキスト化された列はPostgreSQLの既定出力形式になる。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// normalizeRow はバックエンドの行をUserRecordに変換する。
// 検索結果の形（user_id, raw_user_meta_data）とレコードの形（id, raw_metadata）の両方を受け付ける。
// IDを持たない行はレコードが存在しないものとしてnilを返す。
func (s *Service) normalizeRow(row backend.Row) *model.UserRecord {
	if row == nil {
		return nil
	}
	id := strings.TrimSpace(stringField(row, "user_id", "id"))
	if id == "" {
		return nil
	}

	meta := metadataField(row, "raw_metadata", "raw_user_meta_data", "user_metadata")

	rec := &model.UserRecord{
		ID:           id,
		Email:        stringField(row, "email"),
		Phone:        stringField(row, "phone"),
		CreatedAt:    timeField(row, "created_at"),
		UpdatedAt:    timeField(row, "updated_at"),
		LastSignInAt: timeField(row, "last_sign_in_at"),
		RawMetadata:  meta,
		DisplayName:  firstNonEmpty(stringField(row, "display_name"), stringField(meta, "full_name", "name")),
		AvatarURL:    firstNonEmpty(stringField(row, "avatar_url"), stringField(meta, "avatar_url", "picture")),
	}
	if s.sanitizer != nil {
		rec.DisplayName = s.sanitizer.DisplayName(rec.DisplayName)
		rec.AvatarURL = s.sanitizer.AvatarURL(rec.AvatarURL)
	}
	return rec
}

// stringField はkeysのうち最初に値を持つキーの文字列表現を返す。
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case nil:
			continue
		case string:
			if v != "" {
				return v
			}
		case float64, bool, json.Number:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// metadataField はkeysのうち最初に見つかったメタデータを返す。
// JSON文字列として格納されている場合はデコードする。
func metadataField(row backend.Row, keys ...string) map[string]any {
	for _, k := range keys {
		switch v := row[k].(type) {
		case map[string]any:
			return v
		case string:
			var m map[string]any
			if err := json.Unmarshal([]byte(v), &m); err == nil && m != nil {
				return m
			}
		}
	}
	return nil
}

// timeField はkeyの値をタイムスタンプとして解釈する。解釈できない場合はnilを返す。
func timeField(row backend.Row, key string) *time.Time {
	s, ok := row[key].(string)
	if !ok {
		return nil
	}
	return parseTimestamp(s)
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
