// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/secdojo/internal/middleware"
	"github.com/hitoshi/secdojo/internal/model"
)

// userResponse はユーザー情報のAPI表現。パスワードハッシュは含めない。
type userResponse struct {
	ID                    string `json:"id"`
	Username              string `json:"username"`
	TotalXP               int    `json:"total_xp"`
	Level                 int    `json:"level"`
	TotalLessonsCompleted int    `json:"total_lessons_completed"`
}

func newUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:                    user.ID,
		Username:              user.Username,
		TotalXP:               user.TotalXP,
		Level:                 user.Level,
		TotalLessonsCompleted: user.TotalLessonsCompleted,
	}
}

// progressResponse は進捗のAPI表現。
type progressResponse struct {
	LessonID    string     `json:"lesson_id"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	BestScore   int        `json:"best_score"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newProgressResponse(record *model.ProgressRecord) progressResponse {
	return progressResponse{
		LessonID:    record.LessonID,
		Status:      string(record.Status),
		Attempts:    record.Attempts,
		BestScore:   record.BestScore,
		CompletedAt: record.CompletedAt,
	}
}

// lessonResponse はレッスンのAPI表現。
type lessonResponse struct {
	ID               string `json:"id"`
	Slug             string `json:"slug"`
	Title            string `json:"title"`
	Body             string `json:"body,omitempty"`
	Category         string `json:"category"`
	Difficulty       int    `json:"difficulty"`
	BaseXPReward     int    `json:"base_xp_reward"`
	MasteryThreshold int    `json:"mastery_threshold"`
}

func newLessonResponse(lesson *model.Lesson) lessonResponse {
	return lessonResponse{
		ID:               lesson.ID,
		Slug:             lesson.Slug,
		Title:            lesson.Title,
		Body:             lesson.Body,
		Category:         lesson.Category,
		Difficulty:       lesson.Difficulty,
		BaseXPReward:     lesson.BaseXPReward,
		MasteryThreshold: lesson.MasteryThreshold,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON はリクエストボディをJSONとして解析する。
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeBadRequest は400レスポンスを統一フォーマットで書き込む。
func writeBadRequest(w http.ResponseWriter, message string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "BAD_REQUEST",
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	})
}

// writeServiceError はサービス層のエラーをHTTPレスポンスにマッピングする。
// APIErrorはコードに応じたステータスで返し、それ以外は500として扱う
// （詳細はログのみに記録する）。
func writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForCode(apiErr.Code), apiErr)
		return
	}

	slog.Error("request failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// statusForCode はエラーコードをHTTPステータスにマッピングする。
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeNotAuthenticated, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeLessonNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUsernameTaken, model.ErrCodeProgressConflict:
		return http.StatusConflict
	case model.ErrCodeStoreUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
