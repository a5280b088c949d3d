package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/secdojo/internal/model"
)

// PostgresProgressRepo はPostgreSQLを使用した進捗台帳リポジトリ。
type PostgresProgressRepo struct {
	db *sql.DB
}

// NewPostgresProgressRepo はPostgresProgressRepoを生成する。
func NewPostgresProgressRepo(db *sql.DB) *PostgresProgressRepo {
	return &PostgresProgressRepo{db: db}
}

// ApplyAttempt は1回の挑戦を単一トランザクションで記録する。
//
// 実行順序:
//  1. レッスンのメタ情報（difficulty, base_xp_reward, mastery_threshold）を取得
//  2. 進捗行をSELECT ... FOR UPDATEでロック（同一(user, lesson)の同時挑戦を直列化）
//  3. 行がなければ初回挑戦として挿入。挿入がON CONFLICTで競合した場合は
//     ErrAttemptRaceを返し、リトライで既存行へのロック取得に合流させる
//  4. attempts加算、best_score = max(best_score, score)、状態遷移を計算して更新
//  5. 初めてcompleted/masteredに遷移した場合のみ、usersの集計を
//     原子的なSET x = x + deltaで更新し、返されたtotal_xpからレベルを再計算
//
// いずれかのステップが失敗した場合はトランザクション全体がロールバックされ、
// 部分的なXP付与・完了数加算は一切コミットされない。
func (r *PostgresProgressRepo) ApplyAttempt(ctx context.Context, p AttemptParams) (*AttemptResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. レッスンのメタ情報を取得
	var difficulty, baseXP, masteryThreshold int
	err = tx.QueryRowContext(ctx,
		`SELECT difficulty, base_xp_reward, mastery_threshold FROM lessons WHERE id = $1`,
		p.LessonID,
	).Scan(&difficulty, &baseXP, &masteryThreshold)
	if err == sql.ErrNoRows {
		return nil, ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lesson: %w", err)
	}

	// 2. 進捗行をロック
	record, err := lockProgressRow(ctx, tx, p.UserID, p.LessonID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	firstCount := false

	if record == nil {
		// 3. 初回挑戦: 行を新規作成
		record = &model.ProgressRecord{
			ID:        uuid.New().String(),
			UserID:    p.UserID,
			LessonID:  p.LessonID,
			Status:    classifyAttempt(p.Score, p.Score, masteryThreshold, p.CompletionScore),
			Attempts:  1,
			BestScore: p.Score,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if record.Status.IsCounted() {
			record.CompletedAt = &now
			firstCount = true
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO progress (id, user_id, lesson_id, status, attempts, best_score, completed_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (user_id, lesson_id) DO NOTHING`,
			record.ID, record.UserID, record.LessonID,
			string(record.Status), record.Attempts, record.BestScore,
			record.CompletedAt, record.CreatedAt, record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert progress: %w", err)
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if inserted == 0 {
			// 同時挑戦が先に行を作成した。リトライでFOR UPDATEに合流させる。
			return nil, ErrAttemptRace
		}
	} else {
		// 4. 既存行の更新
		wasCounted := record.Status.IsCounted()

		record.Attempts++
		if p.Score > record.BestScore {
			record.BestScore = p.Score
		}
		newStatus := classifyAttempt(p.Score, record.BestScore, masteryThreshold, p.CompletionScore)
		// completed/masteredからの降格はしない（masteredへの昇格のみ許す）
		if wasCounted && newStatus == model.ProgressInProgress {
			newStatus = record.Status
		}
		if wasCounted && record.Status == model.ProgressMastered {
			newStatus = model.ProgressMastered
		}
		record.Status = newStatus
		record.UpdatedAt = now

		if record.Status.IsCounted() && record.CompletedAt == nil {
			record.CompletedAt = &now
		}
		// 完了数への計上は初回遷移の1回だけ。再挑戦では二重計上しない。
		firstCount = !wasCounted && record.Status.IsCounted()

		_, err := tx.ExecContext(ctx,
			`UPDATE progress
			 SET status = $3, attempts = $4, best_score = $5, completed_at = $6, updated_at = $7
			 WHERE user_id = $1 AND lesson_id = $2`,
			record.UserID, record.LessonID,
			string(record.Status), record.Attempts, record.BestScore,
			record.CompletedAt, record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update progress: %w", err)
		}
	}

	// 5. ユーザー集計の更新
	res := &AttemptResult{Record: record}
	user := &model.User{}

	if firstCount {
		res.AwardedXP = baseXP * difficulty

		// 原子的なインクリメント。UPDATEがusers行のロックを取るため、
		// 同一ユーザーの別レッスンへの同時挑戦でもXPの更新が失われることはない。
		err = tx.QueryRowContext(ctx,
			`UPDATE users
			 SET total_xp = total_xp + $2,
			     total_lessons_completed = total_lessons_completed + 1,
			     updated_at = $3
			 WHERE id = $1
			 RETURNING id, username, password_hash, total_xp, level, total_lessons_completed, created_at, updated_at`,
			p.UserID, res.AwardedXP, now,
		).Scan(
			&user.ID, &user.Username, &user.PasswordHash,
			&user.TotalXP, &user.Level, &user.TotalLessonsCompleted,
			&user.CreatedAt, &user.UpdatedAt,
		)
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to award xp: %w", err)
		}

		// レベルは新しいtotal_xpから同一トランザクション内で再計算する
		newLevel := p.ComputeLevel(user.TotalXP)
		if newLevel != user.Level {
			_, err = tx.ExecContext(ctx,
				`UPDATE users SET level = $2 WHERE id = $1`,
				p.UserID, newLevel,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to update level: %w", err)
			}
			user.Level = newLevel
		}
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT id, username, password_hash, total_xp, level, total_lessons_completed, created_at, updated_at
			 FROM users WHERE id = $1`,
			p.UserID,
		).Scan(
			&user.ID, &user.Username, &user.PasswordHash,
			&user.TotalXP, &user.Level, &user.TotalLessonsCompleted,
			&user.CreatedAt, &user.UpdatedAt,
		)
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
	}
	res.User = user

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return res, nil
}

// lockProgressRow は進捗行をFOR UPDATEで取得する。行がない場合はnilを返す。
func lockProgressRow(ctx context.Context, tx *sql.Tx, userID, lessonID string) (*model.ProgressRecord, error) {
	record := &model.ProgressRecord{}
	var status string
	var completedAt sql.NullTime

	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, lesson_id, status, attempts, best_score, completed_at, created_at, updated_at
		 FROM progress
		 WHERE user_id = $1 AND lesson_id = $2
		 FOR UPDATE`,
		userID, lessonID,
	).Scan(
		&record.ID, &record.UserID, &record.LessonID,
		&status, &record.Attempts, &record.BestScore,
		&completedAt, &record.CreatedAt, &record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock progress row: %w", err)
	}

	record.Status = model.ProgressStatus(status)
	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}

	return record, nil
}

// classifyAttempt は挑戦結果から進捗状態を分類する。
// ベストスコアが習熟閾値以上ならmastered、今回のスコアが合格点以上ならcompleted、
// それ以外はin_progress。
func classifyAttempt(score, bestScore, masteryThreshold, completionScore int) model.ProgressStatus {
	switch {
	case bestScore >= masteryThreshold:
		return model.ProgressMastered
	case score >= completionScore:
		return model.ProgressCompleted
	default:
		return model.ProgressInProgress
	}
}

// FindByUserAndLesson はユーザーIDとレッスンIDで進捗を取得する。
// 未着手の場合はnilを返す。
func (r *PostgresProgressRepo) FindByUserAndLesson(ctx context.Context, userID, lessonID string) (*model.ProgressRecord, error) {
	record := &model.ProgressRecord{}
	var status string
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, lesson_id, status, attempts, best_score, completed_at, created_at, updated_at
		 FROM progress WHERE user_id = $1 AND lesson_id = $2`,
		userID, lessonID,
	).Scan(
		&record.ID, &record.UserID, &record.LessonID,
		&status, &record.Attempts, &record.BestScore,
		&completedAt, &record.CreatedAt, &record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find progress: %w", err)
	}

	record.Status = model.ProgressStatus(status)
	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}

	return record, nil
}

// ListByUserID はユーザーの全進捗をレッスンID順で返す。
func (r *PostgresProgressRepo) ListByUserID(ctx context.Context, userID string) ([]*model.ProgressRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, lesson_id, status, attempts, best_score, completed_at, created_at, updated_at
		 FROM progress WHERE user_id = $1 ORDER BY lesson_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []*model.ProgressRecord
	for rows.Next() {
		record := &model.ProgressRecord{}
		var status string
		var completedAt sql.NullTime

		if err := rows.Scan(
			&record.ID, &record.UserID, &record.LessonID,
			&status, &record.Attempts, &record.BestScore,
			&completedAt, &record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}

		record.Status = model.ProgressStatus(status)
		if completedAt.Valid {
			record.CompletedAt = &completedAt.Time
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress: %w", err)
	}

	return records, nil
}

// CountCompletedByUserID はcompleted/masteredの進捗数を返す。
func (r *PostgresProgressRepo) CountCompletedByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM progress
		 WHERE user_id = $1 AND status IN ('completed', 'mastered')`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed progress: %w", err)
	}
	return count, nil
}

// DeleteByUserID はユーザーの全進捗を削除する。
func (r *PostgresProgressRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM progress WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user progress: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProgressRepository = (*PostgresProgressRepo)(nil)
