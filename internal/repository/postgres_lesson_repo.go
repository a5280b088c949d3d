package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/secdojo/internal/model"
)

// PostgresLessonRepo はPostgreSQLを使用したレッスンリポジトリ。
// レッスンはコンテンツパイプラインが投入するため、アプリケーションからは読み取り専用。
type PostgresLessonRepo struct {
	db *sql.DB
}

// NewPostgresLessonRepo はPostgresLessonRepoを生成する。
func NewPostgresLessonRepo(db *sql.DB) *PostgresLessonRepo {
	return &PostgresLessonRepo{db: db}
}

// FindByID は指定IDのレッスンを取得する。見つからない場合はnilを返す。
func (r *PostgresLessonRepo) FindByID(ctx context.Context, id string) (*model.Lesson, error) {
	lesson := &model.Lesson{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, slug, title, body, category, difficulty, base_xp_reward, mastery_threshold, created_at, updated_at
		 FROM lessons WHERE id = $1`,
		id,
	).Scan(
		&lesson.ID, &lesson.Slug, &lesson.Title, &lesson.Body, &lesson.Category,
		&lesson.Difficulty, &lesson.BaseXPReward, &lesson.MasteryThreshold,
		&lesson.CreatedAt, &lesson.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lesson: %w", err)
	}

	return lesson, nil
}

// List は全レッスンをカテゴリ・スラグ順で返す。
func (r *PostgresLessonRepo) List(ctx context.Context) ([]*model.Lesson, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, slug, title, body, category, difficulty, base_xp_reward, mastery_threshold, created_at, updated_at
		 FROM lessons ORDER BY category, slug`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		lesson := &model.Lesson{}
		if err := rows.Scan(
			&lesson.ID, &lesson.Slug, &lesson.Title, &lesson.Body, &lesson.Category,
			&lesson.Difficulty, &lesson.BaseXPReward, &lesson.MasteryThreshold,
			&lesson.CreatedAt, &lesson.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lessons: %w", err)
	}

	return lessons, nil
}

// compile-time interface check
var _ LessonRepository = (*PostgresLessonRepo)(nil)
