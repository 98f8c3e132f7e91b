package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userdir/internal/middleware"
	"github.com/hitoshi/userdir/internal/model"
)

// maxBatchBodyBytes は一括取得リクエストボディの上限。
const maxBatchBodyBytes = 1 << 20

// UserReader はユーザーハンドラーが必要とする読み取りサービスインターフェース。
// 各操作は失敗時も既定値を返すため、エラーを返さない。
type UserReader interface {
	GetUserByID(ctx context.Context, id string) *model.UserRecord
	GetUserByEmail(ctx context.Context, email string) *model.UserRecord
	CheckUserExists(ctx context.Context, id string) bool
	GetUserBasicInfo(ctx context.Context, id string) *model.BasicUserInfo
	GetUsersByIDs(ctx context.Context, ids []string) []model.UserRecord
}

// UserHandler はユーザー参照のHTTPハンドラー。
type UserHandler struct {
	service     UserReader
	maxBatchIDs int
}

// NewUserHandler はUserHandlerを生成する。
// maxBatchIDsが0以下の場合は一括取得の件数を制限しない。
func NewUserHandler(service UserReader, maxBatchIDs int) *UserHandler {
	return &UserHandler{
		service:     service,
		maxBatchIDs: maxBatchIDs,
	}
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type batchRequest struct {
	UserIDs []string `json:"user_ids"`
}

type batchResponse struct {
	Users []model.UserRecord `json:"users"`
}

// GetUser はIDでユーザーを取得する。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u := h.service.GetUserByID(r.Context(), id)
	if u == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// GetUserBasic はユーザーの基本情報を取得する。
// GET /api/users/{id}/basic
func (h *UserHandler) GetUserBasic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info := h.service.GetUserBasicInfo(r.Context(), id)
	if info == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// CheckExists はユーザーの存在有無を返す。
// GET /api/users/{id}/exists
func (h *UserHandler) CheckExists(w http.ResponseWriter, r *http.Request) {
	exists := h.service.CheckUserExists(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

// FindByEmail はメールアドレスでユーザーを取得する。
// GET /api/users?email=
func (h *UserHandler) FindByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("email が指定されていません"))
		return
	}

	u := h.service.GetUserByEmail(r.Context(), email)
	if u == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(email))
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// BatchLookup は複数IDのユーザーを一括取得する。
// 見つからないIDは結果から除外される。
// POST /api/users/batch
func (h *UserHandler) BatchLookup(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if h.maxBatchIDs > 0 && len(req.UserIDs) > h.maxBatchIDs {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewBatchTooLargeError(h.maxBatchIDs))
		return
	}

	users := h.service.GetUsersByIDs(r.Context(), req.UserIDs)
	if users == nil {
		users = []model.UserRecord{}
	}

	writeJSON(w, http.StatusOK, batchResponse{Users: users})
}
