package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/secdojo/internal/model"
	"github.com/hitoshi/secdojo/internal/repository"
)

// --- モック ---

type mockProgressRepo struct {
	applyAttemptFn        func(ctx context.Context, params repository.AttemptParams) (*repository.AttemptResult, error)
	findByUserAndLessonFn func(ctx context.Context, userID, lessonID string) (*model.ProgressRecord, error)
	listByUserIDFn        func(ctx context.Context, userID string) ([]*model.ProgressRecord, error)
}

func (m *mockProgressRepo) ApplyAttempt(ctx context.Context, params repository.AttemptParams) (*repository.AttemptResult, error) {
	return m.applyAttemptFn(ctx, params)
}
func (m *mockProgressRepo) FindByUserAndLesson(ctx context.Context, userID, lessonID string) (*model.ProgressRecord, error) {
	if m.findByUserAndLessonFn != nil {
		return m.findByUserAndLessonFn(ctx, userID, lessonID)
	}
	return nil, nil
}
func (m *mockProgressRepo) ListByUserID(ctx context.Context, userID string) ([]*model.ProgressRecord, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockProgressRepo) CountCompletedByUserID(ctx context.Context, userID string) (int, error) {
	return 0, nil
}
func (m *mockProgressRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return nil
}

func defaultLevels() LevelTable {
	return NewLevelTable([]int{1000, 3000, 7000, 15000, 30000})
}

func fastConfig() Config {
	return Config{
		CompletionScore: 60,
		MaxRetries:      3,
		RetryBackoff:    time.Millisecond,
	}
}

// --- テスト ---

// TestTracker_RecordAttempt_RejectsOutOfRangeScore は範囲外スコアが
// リポジトリに到達する前に拒否されることを検証する。
func TestTracker_RecordAttempt_RejectsOutOfRangeScore(t *testing.T) {
	repoCalled := false
	repo := &mockProgressRepo{
		applyAttemptFn: func(ctx context.Context, params repository.AttemptParams) (*repository.AttemptResult, error) {
			repoCalled = true
			return nil, nil
		},
	}
	tracker := NewTracker(repo, defaultLevels(), fastConfig(), nil)

	for _, score := range []int{-1, 101, 1000} {
		_, err := tracker.RecordAttempt(context.Background(), "u-1", "l-1", score)

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("score %d: expected APIError, got %v", score, err)
		}
		if apiErr.Code != model.ErrCodeInvalidScore {
			t.Errorf("score %d: code = %q, want %q", score, apiErr.Code, model.ErrCodeInvalidScore)
		}
	}

	if repoCalled {
		t.Error("repository should not be called for invalid scores")
	}
}

// TestTracker_RecordAttempt_PassesConfigToRepo はサービス設定（合格点と
// レベル導出関数）がトランザクションパラメータに渡ることを検証する。
func TestTracker_RecordAttempt_PassesConfigToRepo(t *testing.T) {
	var captured repository.AttemptParams
	repo := &mockProgressRepo{
		applyAttemptFn: func(ctx context.Context, params repository.AttemptParams) (*repository.AttemptResult, error) {
			captured = params
			return &repository.AttemptResult{
				Record: &model.ProgressRecord{Status: model.ProgressInProgress},
				User:   &model.User{ID: "u-1"},
			}, nil
		},
	}
	tracker := NewTracker(repo, defaultLevels(), fastConfig(), nil)

	if _, err := tracker.RecordAttempt(context.Background(), "u-1", "l-1", 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.UserID != "u-1" || captured.LessonID != "l-1" || captured.Score != 42 {
		t.Errorf("params = %+v, want user u-1, lesson l-1, score 42", captured)
	}
	if captured.CompletionScore != 60 {
		t.Errorf("CompletionScore = %d, want 60", captured.CompletionScore)
	}
	if captured.ComputeLevel == nil {
		t.Fatal("ComputeLevel must be set")
	}
	if got := captured.ComputeLevel(1050); got != 2 {
		t.Errorf("ComputeLevel(1050) = %d, want 2", got)
	}
}

// TestTracker_RecordAttempt_FirstCompletion は初回完了時に更新後の集計が
// そのまま返ることを検証する。950XPのユーザーが難易度1・基礎報酬100の
// レッスンを完了すると1050XPとなり、レベル2に昇格する。
func TestTracker_RecordAttempt_FirstCompletion(t *testing.T) {
	repo := &mockProgressRepo{
		applyAttemptFn: func(ctx context.Context, params repository.AttemptParams) (*repository.AttemptResult, error) {
			// トランザクション内の集計更新をシミュレートする
			newXP := 950 + 100
			return &repository.AttemptResult{
				Record: &model.ProgressRecord{
					Status:    model.ProgressMastered,
					Attempts:  1,
					BestScore: 85,
				},
				User: &model.User{
					ID:                    params.UserID,
					TotalXP:               newXP,
					Level:                 params.ComputeLevel(newXP),
					TotalLessonsCompleted: 1,
				},
				AwardedXP: 100,
			}, nil
		},
	}
	tracker := NewTracker(repo, defaultLevels(), fastConfig(), nil)

	result, err := tracker.RecordAttempt(context.Background(), "u-1", "l-1", 85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.AwardedXP != 100 {
		t.Errorf("AwardedXP = %d, want 100", result.AwardedXP)
	}
	if result.User.TotalXP != 1050 {
		t.Errorf("TotalXP = %d, want 1050", result.User.TotalXP)
	}
	if result.User.Level != 2 {
		t.Errorf("Level = %d, want 2", result.User.Level)
	}
	if result.Record.Status != model.ProgressMastered {
		t.Errorf("Status = %q, want %q", result.Record.Status, model.ProgressMastered)
	}
}

// TestTracker_RecordAttempt_RetriesOnConflict は直列化失敗が
// リトライで回復することを検証する。
func TestTracker_RecordAttempt_RetriesOnConflict(t *testing.T) {
	calls := 0
	repo := &mockProgressRepo{
		applyAttemptFn: func(ctx context.Context, params repository.AttemptParams) (*repository.AttemptResult, error) {
			calls++
			if calls <= 2 {
				return nil, repository.ErrAttemptRace
			}
			return &repository.AttemptResult{
				Record: &model.ProgressRecord{Status: model.ProgressCompleted},
				User:   &model.User{ID: "u-1"},
			}, nil
		},
	}
	tracker := NewTracker(repo, defaultLevels(), fastConfig(), nil)

	result, err := tracker.RecordAttempt(context.Background(), "u-1", "l-1", 70)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if calls != 3 {
		t.Errorf("repo called %d times, want 3", calls)
	}
}

// TestTracker_RecordAttempt_ConflictExhausted はリトライ上限超過で
// PROGRESS_CONFLICTが返ることを検証する。このとき挑戦は保存されていない。
func TestTracker_RecordAttempt_ConflictExhausted(t *testing.T) {
	calls := 0
	repo := &mockProgressRepo{
		applyAttemptFn: func(ctx context.Context, params repository.AttemptParams) (*repository.AttemptResult, error) {
			calls++
			return nil, repository.ErrAttemptRace
		},
	}
	tracker := NewTracker(repo, defaultLevels(), fastConfig(), nil)

	_, err := tracker.RecordAttempt(context.Background(), "u-1", "l-1", 70)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeProgressConflict {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeProgressConflict)
	}
	// 初回 + MaxRetries回
	if calls != 4 {
		t.Errorf("repo called %d times, want 4", calls)
	}
}

// TestTracker_RecordAttempt_LessonNotFound はレッスン不在がリトライされずに
// LESSON_NOT_FOUNDとして返ることを検証する。
func TestTracker_RecordAttempt_LessonNotFound(t *testing.T) {
	calls := 0
	repo := &mockProgressRepo{
		applyAttemptFn: func(ctx context.Context, params repository.AttemptParams) (*repository.AttemptResult, error) {
			calls++
			return nil, repository.ErrLessonNotFound
		},
	}
	tracker := NewTracker(repo, defaultLevels(), fastConfig(), nil)

	_, err := tracker.RecordAttempt(context.Background(), "u-1", "no-such-lesson", 70)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeLessonNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeLessonNotFound)
	}
	if calls != 1 {
		t.Errorf("repo called %d times, want 1 (not-found must not retry)", calls)
	}
}

// TestTracker_RecordAttempt_ContextCancelled はバックオフ待機中の
// キャンセルで中断されることを検証する。
func TestTracker_RecordAttempt_ContextCancelled(t *testing.T) {
	repo := &mockProgressRepo{
		applyAttemptFn: func(ctx context.Context, params repository.AttemptParams) (*repository.AttemptResult, error) {
			return nil, repository.ErrAttemptRace
		},
	}
	tracker := NewTracker(repo, defaultLevels(), Config{
		CompletionScore: 60,
		MaxRetries:      3,
		RetryBackoff:    time.Minute,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tracker.RecordAttempt(ctx, "u-1", "l-1", 70)
	if err == nil {
		t.Fatal("expected error after context cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

// TestTracker_GetProgress_NotStartedReturnsNil は未着手の進捗がnilで返ることを検証する。
func TestTracker_GetProgress_NotStartedReturnsNil(t *testing.T) {
	repo := &mockProgressRepo{
		findByUserAndLessonFn: func(ctx context.Context, userID, lessonID string) (*model.ProgressRecord, error) {
			return nil, nil
		},
	}
	tracker := NewTracker(repo, defaultLevels(), fastConfig(), nil)

	record, err := tracker.GetProgress(context.Background(), "u-1", "l-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Errorf("expected nil record for not-started lesson, got %+v", record)
	}
}
