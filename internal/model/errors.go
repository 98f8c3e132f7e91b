// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, user, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInvalidDate     = "INVALID_DATE"
	ErrCodeInvalidDaysBack = "INVALID_DAYS_BACK"
	ErrCodeBatchTooLarge   = "BATCH_TOO_LARGE"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", key),
		Category: "user",
		Action:   "ユーザーIDまたはメールアドレスを確認してください。",
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストのパラメータを確認してください。",
	}
}

// NewInvalidDateError は日付形式が不正な場合のエラーを生成する。
func NewInvalidDateError(date string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", date),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewInvalidDaysBackError は留存日数が不正な場合のエラーを生成する。
func NewInvalidDaysBackError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDaysBack,
		Message:  fmt.Sprintf("無効な日数です: %s", value),
		Category: "validation",
		Action:   "days_back には1以上の整数を指定してください。",
	}
}

// NewBatchTooLargeError は一括取得のID数が上限を超えた場合のエラーを生成する。
func NewBatchTooLargeError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeBatchTooLarge,
		Message:  fmt.Sprintf("一度に指定できるユーザーIDは%d件までです。", limit),
		Category: "validation",
		Action:   "ユーザーIDを分割して複数回リクエストしてください。",
	}
}

// NewUnauthorizedError は認証に失敗した場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "有効なAPIトークンを Authorization ヘッダーに指定してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
