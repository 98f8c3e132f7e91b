package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/userdir/internal/model"
)

// StatsReader は統計ハンドラーが必要とするサービスインターフェース。
type StatsReader interface {
	GetDailyNewUsersCount(ctx context.Context, date string) int
	GetUserRetentionCount(ctx context.Context, daysBack int, date string) int
	GetUserStatisticsSummary(ctx context.Context, date string) model.StatisticsSummary
	GetRetentionBreakdown(ctx context.Context, date string, days ...int) map[int]int
}

// StatsHandler はユーザー統計のHTTPハンドラー。
type StatsHandler struct {
	service StatsReader
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsReader) *StatsHandler {
	return &StatsHandler{service: service}
}

type countResponse struct {
	TargetDate string `json:"target_date,omitempty"`
	DaysBack   int    `json:"days_back,omitempty"`
	Count      int    `json:"count"`
}

type breakdownResponse struct {
	TargetDate string         `json:"target_date,omitempty"`
	Retention  map[string]int `json:"retention"`
}

// Summary は日次の統計サマリーを返す。
// GET /api/stats/summary?date=
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.service.GetUserStatisticsSummary(r.Context(), date))
}

// NewUsers は指定日の新規ユーザー数を返す。
// GET /api/stats/new-users?date=
func (h *StatsHandler) NewUsers(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	count := h.service.GetDailyNewUsersCount(r.Context(), date)
	writeJSON(w, http.StatusOK, countResponse{TargetDate: date, Count: count})
}

// Retention は指定日から遡った留存ユーザー数を返す。
// GET /api/stats/retention?date=&days_back=
func (h *StatsHandler) Retention(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	daysBack, ok := daysBackParam(w, r)
	if !ok {
		return
	}

	count := h.service.GetUserRetentionCount(r.Context(), daysBack, date)
	writeJSON(w, http.StatusOK, countResponse{TargetDate: date, DaysBack: daysBack, Count: count})
}

// RetentionBreakdown は1日・3日・7日の留存ユーザー数をまとめて返す。
// GET /api/stats/retention/breakdown?date=
func (h *StatsHandler) RetentionBreakdown(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	breakdown := h.service.GetRetentionBreakdown(r.Context(), date)
	retention := make(map[string]int, len(breakdown))
	for days, n := range breakdown {
		retention[strconv.Itoa(days)+"d"] = n
	}

	writeJSON(w, http.StatusOK, breakdownResponse{TargetDate: date, Retention: retention})
}
