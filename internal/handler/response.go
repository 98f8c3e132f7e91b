// Package handler はユーザーディレクトリの読み取りAPIを提供するHTTPハンドラー群。
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/userdir/internal/middleware"
	"github.com/hitoshi/userdir/internal/model"
)

const dateLayout = "2006-01-02"

// writeJSON は200以外も含むJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// dateParam はクエリパラメータ date を検証して返す。
// 未指定の場合は空文字列を返し、サービス側で当日として扱う。
func dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		return "", true
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(date))
		return "", false
	}
	return date, true
}

// daysBackParam はクエリパラメータ days_back を検証して返す。
// 未指定の場合は0を返し、サービス側の既定日数を使う。
func daysBackParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("days_back"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDaysBackError(raw))
		return 0, false
	}
	return n, true
}
