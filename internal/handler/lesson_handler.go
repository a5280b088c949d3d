package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/secdojo/internal/model"
)

// CatalogServiceInterface はレッスンハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	GetLesson(ctx context.Context, id string) (*model.Lesson, error)
	ListLessons(ctx context.Context) ([]*model.Lesson, error)
}

// LessonHandler はレッスンカタログのHTTPハンドラー。
type LessonHandler struct {
	service CatalogServiceInterface
}

// NewLessonHandler はLessonHandlerを生成する。
func NewLessonHandler(service CatalogServiceInterface) *LessonHandler {
	return &LessonHandler{service: service}
}

// ListLessons は全レッスンの一覧を返す。一覧に本文は含まれない。
// GET /api/lessons
func (h *LessonHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.service.ListLessons(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responses := make([]lessonResponse, 0, len(lessons))
	for _, lesson := range lessons {
		responses = append(responses, newLessonResponse(lesson))
	}

	writeJSON(w, http.StatusOK, map[string]any{"lessons": responses})
}

// GetLesson は指定IDのレッスンをサニタイズ済み本文付きで返す。
// GET /api/lessons/{id}
func (h *LessonHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "id")

	lesson, err := h.service.GetLesson(r.Context(), lessonID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLessonResponse(lesson))
}
