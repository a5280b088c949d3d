package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/secdojo/internal/middleware"
	"github.com/hitoshi/secdojo/internal/model"
	"github.com/hitoshi/secdojo/internal/repository"
)

// ProgressServiceInterface は進捗ハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	RecordAttempt(ctx context.Context, userID, lessonID string, score int) (*repository.AttemptResult, error)
	GetProgress(ctx context.Context, userID, lessonID string) (*model.ProgressRecord, error)
	ListProgress(ctx context.Context, userID string) ([]*model.ProgressRecord, error)
}

// ProgressHandler は進捗追跡のHTTPハンドラー。
type ProgressHandler struct {
	service ProgressServiceInterface
}

// NewProgressHandler はProgressHandlerを生成する。
func NewProgressHandler(service ProgressServiceInterface) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// attemptRequest は挑戦送信のリクエストボディ。
type attemptRequest struct {
	Score int `json:"score"`
}

// attemptResponse は挑戦記録のレスポンス。
// 更新後の進捗とユーザー集計を返すため、クライアントは追加の読み取りなしで
// XP・レベル表示を更新できる。
type attemptResponse struct {
	Progress  progressResponse `json:"progress"`
	User      userResponse     `json:"user"`
	AwardedXP int              `json:"awarded_xp"`
}

// SubmitAttempt は1回のレッスン挑戦を記録する。
// 失敗時（409/500）は挑戦が保存されていないことを意味し、クライアントは再送する。
// POST /api/lessons/{id}/attempts
func (h *ProgressHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	lessonID := chi.URLParam(r, "id")

	var req attemptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "リクエストボディを解析できません。")
		return
	}

	result, err := h.service.RecordAttempt(r.Context(), userID, lessonID, req.Score)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, attemptResponse{
		Progress:  newProgressResponse(result.Record),
		User:      newUserResponse(result.User),
		AwardedXP: result.AwardedXP,
	})
}

// GetProgress は指定レッスンの進捗を返す。
// 未着手の場合はstatus=not_startedの空進捗を返す（404にはしない）。
// GET /api/lessons/{id}/progress
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	lessonID := chi.URLParam(r, "id")

	record, err := h.service.GetProgress(r.Context(), userID, lessonID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if record == nil {
		writeJSON(w, http.StatusOK, progressResponse{
			LessonID: lessonID,
			Status:   string(model.ProgressNotStarted),
		})
		return
	}

	writeJSON(w, http.StatusOK, newProgressResponse(record))
}

// ListProgress はユーザーの全進捗を返す。
// GET /api/users/me/progress
func (h *ProgressHandler) ListProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	records, err := h.service.ListProgress(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responses := make([]progressResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, newProgressResponse(record))
	}

	writeJSON(w, http.StatusOK, map[string]any{"progress": responses})
}
