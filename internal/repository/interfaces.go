// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/secdojo/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。ユーザー名重複時はunique violationを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、progressはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// CreateSuperseding はセッションを作成する。
	// 同一browser_identityの有効セッションは同一トランザクション内で失効させる。
	// 有効セッションは常にbrowser_identityごとに最大1つに保たれる。
	CreateSuperseding(ctx context.Context, session *model.Session) error

	// FindByToken は指定トークンのセッションを取得する。
	// 存在しない・期限切れの場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.Session, error)

	// FindActiveByIdentity はbrowser_identityの最新の有効セッションを取得する。
	// 純粋な読み取りであり、状態を作らない。見つからない場合はnilを返す。
	FindActiveByIdentity(ctx context.Context, browserIdentity string) (*model.Session, error)

	// DeleteByToken は指定トークンのセッションを削除する。冪等であり、
	// 存在しないトークンの削除はエラーにならない。
	DeleteByToken(ctx context.Context, token string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	// 読み取りと並行して安全に実行できる。
	DeleteExpired(ctx context.Context) (int64, error)
}

// LessonRepository はレッスンカタログの読み取りインターフェース。
// コンテンツの作成・検証は本システムの範囲外であり、読み取り専用で扱う。
type LessonRepository interface {
	// FindByID は指定IDのレッスンを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Lesson, error)

	// List は全レッスンをカテゴリ・スラグ順で返す。
	List(ctx context.Context) ([]*model.Lesson, error)
}

// AttemptParams はApplyAttemptの1単位分のパラメータ。
type AttemptParams struct {
	UserID   string
	LessonID string
	Score    int

	// CompletionScore はcompletedと判定する最低スコア。
	CompletionScore int

	// ComputeLevel は新しいtotal_xpからレベルを導出する純粋関数。
	// 集計更新と同一トランザクション内で呼び出される。
	ComputeLevel func(totalXP int) int
}

// AttemptResult はApplyAttemptの結果。更新後の進捗と集計値を返す。
type AttemptResult struct {
	Record *model.ProgressRecord
	User   *model.User

	// AwardedXP は今回の挑戦で付与されたXP。初回完了時のみ非ゼロ。
	AwardedXP int
}

// ProgressRepository はユーザーごとのレッスン進捗台帳の永続化インターフェース。
type ProgressRepository interface {
	// ApplyAttempt は1回の挑戦を単一トランザクションで記録する。
	// 進捗行のロック取得、attempts加算、best_score更新、状態遷移、
	// 初回完了時のXP付与・完了数加算・レベル再計算までを原子的に行う。
	// レッスンが存在しない場合はErrLessonNotFoundを返し、状態を一切変更しない。
	// 直列化失敗・デッドロック時はリトライ可能なエラーを返す（IsRetryableで判定）。
	ApplyAttempt(ctx context.Context, params AttemptParams) (*AttemptResult, error)

	// FindByUserAndLesson はユーザーIDとレッスンIDで進捗を取得する。
	// 未着手の場合はnilを返す。
	FindByUserAndLesson(ctx context.Context, userID, lessonID string) (*model.ProgressRecord, error)

	// ListByUserID はユーザーの全進捗をレッスンID順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.ProgressRecord, error)

	// CountCompletedByUserID はcompleted/masteredの進捗数を返す。
	// total_lessons_completedとの整合性検証に使用する。
	CountCompletedByUserID(ctx context.Context, userID string) (int, error)

	// DeleteByUserID はユーザーの全進捗を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
