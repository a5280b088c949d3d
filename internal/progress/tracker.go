// Package progress は学習挑戦の記録とユーザー集計の整合性維持を提供する。
//
// 挑戦1回の記録（進捗更新＋XP付与＋レベル再計算）は単一トランザクションで
// 実行され、同一(user, lesson)への同時挑戦は行ロックで直列化される。
// 直列化失敗は上限付きバックオフでリトライし、使い切った場合は
// PROGRESS_CONFLICTとして呼び出し側に再送を求める。
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/secdojo/internal/model"
	"github.com/hitoshi/secdojo/internal/repository"
)

// Metrics は進捗関連メトリクスの記録インターフェース。
type Metrics interface {
	RecordAttempt()
	RecordCompletionAwarded(xp int)
	RecordConflictRetry()
}

// Config はTrackerの設定。
type Config struct {
	CompletionScore int           // completedと判定する最低スコア
	MaxRetries      int           // 競合リトライの上限
	RetryBackoff    time.Duration // 初回バックオフ（リトライごとに2倍）
}

// Tracker は進捗追跡のサービス層。
type Tracker struct {
	repo    repository.ProgressRepository
	levels  LevelTable
	config  Config
	metrics Metrics
}

// NewTracker はTrackerを生成する。metricsはnilでもよい。
func NewTracker(repo repository.ProgressRepository, levels LevelTable, config Config, metrics Metrics) *Tracker {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 50 * time.Millisecond
	}
	return &Tracker{
		repo:    repo,
		levels:  levels,
		config:  config,
		metrics: metrics,
	}
}

// RecordAttempt は1回の挑戦を記録し、更新後の進捗と集計値を返す。
// スコアは0〜100。レッスンが存在しない場合はLESSON_NOT_FOUNDで失敗し、
// 状態は一切変更されない。リトライ上限超過時はPROGRESS_CONFLICTを返す。
// このときも挑戦は保存されておらず、呼び出し側は再送する必要がある。
func (t *Tracker) RecordAttempt(ctx context.Context, userID, lessonID string, score int) (*repository.AttemptResult, error) {
	if score < 0 || score > 100 {
		return nil, model.NewInvalidScoreError(score)
	}

	params := repository.AttemptParams{
		UserID:          userID,
		LessonID:        lessonID,
		Score:           score,
		CompletionScore: t.config.CompletionScore,
		ComputeLevel:    t.levels.ComputeLevel,
	}

	var result *repository.AttemptResult
	var err error
	backoff := t.config.RetryBackoff

	for attempt := 0; ; attempt++ {
		result, err = t.repo.ApplyAttempt(ctx, params)
		if err == nil {
			break
		}
		if !repository.IsRetryable(err) || attempt >= t.config.MaxRetries {
			break
		}

		if t.metrics != nil {
			t.metrics.RecordConflictRetry()
		}
		slog.Warn("attempt transaction conflicted, retrying",
			slog.String("user_id", userID),
			slog.String("lesson_id", lessonID),
			slog.Int("retry", attempt+1),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("attempt aborted: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	if err != nil {
		switch {
		case err == repository.ErrLessonNotFound:
			return nil, model.NewLessonNotFoundError(lessonID)
		case err == repository.ErrUserNotFound:
			return nil, model.NewUserNotFoundError()
		case repository.IsRetryable(err):
			return nil, model.NewProgressConflictError()
		default:
			return nil, fmt.Errorf("failed to record attempt: %w", err)
		}
	}

	if t.metrics != nil {
		t.metrics.RecordAttempt()
		if result.AwardedXP > 0 {
			t.metrics.RecordCompletionAwarded(result.AwardedXP)
		}
	}

	if result.AwardedXP > 0 {
		slog.Info("lesson completion awarded",
			slog.String("user_id", userID),
			slog.String("lesson_id", lessonID),
			slog.Int("awarded_xp", result.AwardedXP),
			slog.Int("total_xp", result.User.TotalXP),
			slog.Int("level", result.User.Level),
		)
	}

	return result, nil
}

// GetProgress はユーザーとレッスンのペアの進捗を取得する。
// 未着手の場合はnilを返す（not_started扱いは呼び出し側の表現）。
func (t *Tracker) GetProgress(ctx context.Context, userID, lessonID string) (*model.ProgressRecord, error) {
	record, err := t.repo.FindByUserAndLesson(ctx, userID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return record, nil
}

// ListProgress はユーザーの全進捗を返す。
func (t *Tracker) ListProgress(ctx context.Context, userID string) ([]*model.ProgressRecord, error) {
	records, err := t.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return records, nil
}

// ComputeLevel はtotal_xpからレベルを導出する。
func (t *Tracker) ComputeLevel(totalXP int) int {
	return t.levels.ComputeLevel(totalXP)
}
