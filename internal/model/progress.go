package model

import "time"

// ProgressStatus はレッスン進捗の状態を表す。
type ProgressStatus string

const (
	// ProgressNotStarted は未着手状態。progressテーブルに行が存在しない場合に相当する。
	ProgressNotStarted ProgressStatus = "not_started"
	// ProgressInProgress は挑戦中（合格点未到達）の状態。
	ProgressInProgress ProgressStatus = "in_progress"
	// ProgressCompleted は合格点に到達した状態。
	ProgressCompleted ProgressStatus = "completed"
	// ProgressMastered はベストスコアがレッスンの習熟閾値に到達した状態。
	ProgressMastered ProgressStatus = "mastered"
)

// IsCounted は完了数（total_lessons_completed）にカウントされる状態かどうかを返す。
func (s ProgressStatus) IsCounted() bool {
	return s == ProgressCompleted || s == ProgressMastered
}

// ProgressRecord はユーザーとレッスンのペアごとの進捗台帳を表す。
// (UserID, LessonID)で一意。初回挑戦時に作成され、以降の挑戦で更新される。
// BestScoreは全挑戦の最大スコアであり単調非減少。Attemptsも単調非減少。
type ProgressRecord struct {
	ID          string
	UserID      string
	LessonID    string
	Status      ProgressStatus
	Attempts    int
	BestScore   int
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
