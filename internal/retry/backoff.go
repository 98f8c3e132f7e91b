package retry

import (
	"net/http"
	"time"
)

// StatusClass はHTTPステータスコードに基づくリトライ可否の分類。
type StatusClass int

const (
	// StatusOK は成功（2xx）。
	StatusOK StatusClass = iota
	// StatusRetryable は一時的な失敗でリトライ対象（408/429/5xx）。
	StatusRetryable
	// StatusPermanent はリトライしても結果が変わらない失敗（その他4xx）。
	StatusPermanent
)

// ClassifyHTTPStatus はHTTPステータスコードをリトライ可否で分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusOK
	case statusCode == http.StatusRequestTimeout:
		return StatusRetryable
	case statusCode == http.StatusTooManyRequests:
		return StatusRetryable
	case statusCode >= 500:
		return StatusRetryable
	case statusCode >= 400:
		return StatusPermanent
	default:
		// 1xx/3xx はバックエンドから返る想定がないため一時的な異常として扱う
		return StatusRetryable
	}
}

// CalculateBackoff は失敗済みの試行回数に基づいて指数バックオフ遅延を計算する。
// initialから2倍ずつ増加し、maxで頭打ちになる。initialが0以下の場合は待機しない。
func CalculateBackoff(failedAttempts int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		return 0
	}
	delay := initial
	for i := 1; i < failedAttempts; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}
