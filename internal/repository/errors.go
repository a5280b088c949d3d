package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrLessonNotFound は挑戦対象のレッスンが存在しない場合に返す。
var ErrLessonNotFound = errors.New("lesson not found")

// ErrUserNotFound は集計更新対象のユーザーが存在しない場合に返す。
var ErrUserNotFound = errors.New("user not found")

// ErrAttemptRace は進捗行の初回作成が同時挑戦と競合した場合に返す。
// リトライすれば既存行へのFOR UPDATEで直列化される。
var ErrAttemptRace = errors.New("progress row creation raced with a concurrent attempt")

// PostgreSQLのエラーコード
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

// IsRetryable はトランザクションの再実行で解決しうるエラーかどうかを判定する。
// 直列化失敗（40001）、デッドロック（40P01）、進捗行の作成競合が対象。
func IsRetryable(err error) bool {
	if errors.Is(err, ErrAttemptRace) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	return false
}

// IsUniqueViolation はUNIQUE制約違反（23505）かどうかを判定する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}
