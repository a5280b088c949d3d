// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, progress, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeLessonNotFound     = "LESSON_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidScore       = "INVALID_SCORE"
	ErrCodeProgressConflict   = "PROGRESS_CONFLICT"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
)

// NewNotAuthenticatedError は未認証エラーを生成する。
// セッションが存在しない・期限切れ・置き換え済みの場合はすべてこのエラーになる
// （「ログインしたことがない」状態と区別しないフェイルクローズ設計）。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "認証されていません。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// ユーザーが存在しない場合とパスワード不一致の場合を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewLessonNotFoundError はレッスン未検出エラーを生成する。
func NewLessonNotFoundError(lessonID string) *APIError {
	return &APIError{
		Code:     ErrCodeLessonNotFound,
		Message:  fmt.Sprintf("指定されたレッスンが見つかりません: %s", lessonID),
		Category: "validation",
		Action:   "レッスンIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidScoreError は範囲外スコアエラーを生成する。
func NewInvalidScoreError(score int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScore,
		Message:  fmt.Sprintf("無効なスコアです: %d", score),
		Category: "validation",
		Action:   "スコアは0から100の範囲で指定してください。",
	}
}

// NewProgressConflictError は進捗更新の競合エラーを生成する。
// 同一(user, lesson)への同時挑戦でリトライ上限を超えた場合に返す。
// 挑戦は記録されていないため、呼び出し側は再送する必要がある。
func NewProgressConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeProgressConflict,
		Message:  "進捗の更新が他のリクエストと競合しました。",
		Category: "progress",
		Action:   "挑戦結果は保存されていません。再度送信してください。",
	}
}

// NewStoreUnavailableError はストア障害エラーを生成する。
// 部分的なXP付与や進捗書き込みは一切コミットされていないことを保証する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "データストアへのアクセスに失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
