// Package catalog はレッスンカタログの配信を提供する。
//
// コアの進捗追跡が参照するのはレッスンのメタ情報（難易度・XP報酬・習熟閾値）
// のみで、本文コンテンツは解釈せずUIへ配信するだけである。
// コンテンツの作成・検証・タグ分類は外部のパイプラインの責務。
package catalog

import (
	"context"
	"fmt"

	"github.com/hitoshi/secdojo/internal/model"
	"github.com/hitoshi/secdojo/internal/repository"
)

// BodySanitizer はレッスン本文の配信時サニタイズのインターフェース。
type BodySanitizer interface {
	Sanitize(rawHTML string) string
}

// Service はレッスンカタログのサービス層。
type Service struct {
	repo      repository.LessonRepository
	sanitizer BodySanitizer
}

// NewService はServiceを生成する。
func NewService(repo repository.LessonRepository, sanitizer BodySanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// GetLesson は指定IDのレッスンを取得する。本文はサニタイズ済みで返す。
// 見つからない場合はLESSON_NOT_FOUNDを返す。
func (s *Service) GetLesson(ctx context.Context, id string) (*model.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	if lesson == nil {
		return nil, model.NewLessonNotFoundError(id)
	}

	if s.sanitizer != nil {
		lesson.Body = s.sanitizer.Sanitize(lesson.Body)
	}

	return lesson, nil
}

// ListLessons は全レッスンを返す。一覧では本文を返さない（空にする）。
func (s *Service) ListLessons(ctx context.Context) ([]*model.Lesson, error) {
	lessons, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}

	for _, lesson := range lessons {
		lesson.Body = ""
	}

	return lessons, nil
}
