// Package model はドメインモデルを定義する。
package model

import "time"

// UserRecord はユーザーディレクトリから解決された正規化済みユーザー情報を表す。
// IDは常に設定される。レコードが存在しない場合はnilで表現し、IDが空のレコードは返さない。
type UserRecord struct {
	ID           string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
	RawMetadata  map[string]any `json:"raw_metadata,omitempty"`
	DisplayName  string         `json:"display_name,omitempty"`
	AvatarURL    string         `json:"avatar_url,omitempty"`
}

// BasicUserInfo はUserRecordから基本5項目のみを取り出した射影。
// 単独では生成せず、必ずUserRecord.Basicから導出する。
type BasicUserInfo struct {
	ID           string     `json:"id"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
}

// Basic はUserRecordを基本情報に射影する。
func (u *UserRecord) Basic() *BasicUserInfo {
	if u == nil {
		return nil
	}
	return &BasicUserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Phone:        u.Phone,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
}

// UnknownTargetDate は対象日の解決自体に失敗した場合に設定される値。
const UnknownTargetDate = "unknown"

// StatisticsSummary はユーザー統計の集計結果。呼び出しごとに生成し、永続化しない。
type StatisticsSummary struct {
	TargetDate      string `json:"target_date"`
	DailyNewUsers   int    `json:"daily_new_users"`
	UserRetention7d int    `json:"user_retention_7d"`
}
