// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/secdojo/internal/model"
	"github.com/hitoshi/secdojo/internal/repository"
)

// LevelComputer はtotal_xpからレベルを導出する純粋関数のインターフェース。
type LevelComputer interface {
	ComputeLevel(totalXP int) int
}

// Stats はユーザーの学習統計を表す。
type Stats struct {
	User            *model.User
	InProgressCount int
	CompletedCount  int
	MasteredCount   int
}

// Service はユーザー管理のサービス層。
// 統計の読み取りと退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	progressRepo repository.ProgressRepository
	levels       LevelComputer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	progressRepo repository.ProgressRepository,
	levels LevelComputer,
) *Service {
	return &Service{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		progressRepo: progressRepo,
		levels:       levels,
	}
}

// GetStats はユーザーの集計値と状態別の進捗数を返す。
// 返却前にlevelを必ずtotal_xpから再計算する。保存値との乖離は
// トランザクション境界の欠落を意味するため、検出したらログに記録する
// （本番ロジックでの「修復」は行わない。原因側を直すべきシグナルである）。
func (s *Service) GetStats(ctx context.Context, userID string) (*Stats, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	derivedLevel := s.levels.ComputeLevel(user.TotalXP)
	if derivedLevel != user.Level {
		slog.Error("stored level diverged from total_xp",
			slog.String("user_id", userID),
			slog.Int("stored_level", user.Level),
			slog.Int("derived_level", derivedLevel),
			slog.Int("total_xp", user.TotalXP),
		)
		user.Level = derivedLevel
	}

	records, err := s.progressRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	stats := &Stats{User: user}
	for _, record := range records {
		switch record.Status {
		case model.ProgressInProgress:
			stats.InProgressCount++
		case model.ProgressCompleted:
			stats.CompletedCount++
		case model.ProgressMastered:
			stats.MasteredCount++
		}
	}

	// total_lessons_completedは台帳から導出した件数と常に一致するはず
	if counted := stats.CompletedCount + stats.MasteredCount; counted != user.TotalLessonsCompleted {
		slog.Error("total_lessons_completed diverged from progress ledger",
			slog.String("user_id", userID),
			slog.Int("stored", user.TotalLessonsCompleted),
			slog.Int("derived", counted),
		)
	}

	return stats, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: progress → sessions → user。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 進捗を削除
	if err := s.progressRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("進捗の削除に失敗しました: %w", err)
	}

	// 2. セッションを削除
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	// 3. ユーザーを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
