package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/secdojo/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// CreateSuperseding はセッションを作成する。
// identityに対するトランザクションスコープの勧告ロックを取ってから、
// 同一browser_identityの有効セッションを失効させ、新しい行を挿入する。
// 同一identityへの同時CreateSupersedingはロック待ちでコミット順に直列化され、
// 後続のトランザクションは先行が挿入した行も失効させる（last writer wins）。
// 行ロックだけでは不十分な点に注意: 既存行がない同時作成では失効UPDATEが
// ロックすべき行を持たず、両方のINSERTがコミットできてしまう。
// 古いトークンは行としては残るが、期限切れとなり以後解決されない。
func (r *PostgresSessionRepo) CreateSuperseding(ctx context.Context, session *model.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// identity単位の直列化。ロックはコミット/ロールバック時に自動解放される。
	_, err = tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`,
		session.BrowserIdentity,
	)
	if err != nil {
		return fmt.Errorf("failed to lock browser identity: %w", err)
	}

	// 既存の有効セッションを失効させる
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET expires_at = now()
		 WHERE browser_identity = $1 AND expires_at > now()`,
		session.BrowserIdentity,
	)
	if err != nil {
		return fmt.Errorf("failed to supersede prior sessions: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, browser_identity, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.Token, session.UserID, session.BrowserIdentity,
		session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByToken は指定トークンのセッションを取得する。
// 存在しない・期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, browser_identity, created_at, expires_at
		 FROM sessions
		 WHERE token = $1 AND expires_at > now()`,
		token,
	).Scan(&session.Token, &session.UserID, &session.BrowserIdentity, &session.CreatedAt, &session.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// FindActiveByIdentity はbrowser_identityの最新の有効セッションを取得する。
// 見つからない場合はnilを返す。純粋な読み取りであり、状態を作らない。
func (r *PostgresSessionRepo) FindActiveByIdentity(ctx context.Context, browserIdentity string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, browser_identity, created_at, expires_at
		 FROM sessions
		 WHERE browser_identity = $1 AND expires_at > now()
		 ORDER BY created_at DESC
		 LIMIT 1`,
		browserIdentity,
	).Scan(&session.Token, &session.UserID, &session.BrowserIdentity, &session.CreatedAt, &session.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session by identity: %w", err)
	}

	return session, nil
}

// DeleteByToken は指定トークンのセッションを削除する。
// 存在しないトークンの削除もエラーにならない（冪等）。
func (r *PostgresSessionRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
// 有効なセッションには触れないため、読み取りと並行して安全に実行できる。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
