package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/secdojo/internal/middleware"
	"github.com/hitoshi/secdojo/internal/model"
	"github.com/hitoshi/secdojo/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetStats(ctx context.Context, userID string) (*user.Stats, error)
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// statsResponse は学習統計のレスポンス。
type statsResponse struct {
	User            userResponse `json:"user"`
	InProgressCount int          `json:"in_progress_count"`
	CompletedCount  int          `json:"completed_count"`
	MasteredCount   int          `json:"mastered_count"`
}

// GetStats は現在のユーザーの学習統計を返す。
// GET /api/users/me/stats
func (h *UserHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	stats, err := h.service.GetStats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		User:            newUserResponse(stats.User),
		InProgressCount: stats.InProgressCount,
		CompletedCount:  stats.CompletedCount,
		MasteredCount:   stats.MasteredCount,
	})
}

// Withdraw は現在のユーザーを退会させる。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
