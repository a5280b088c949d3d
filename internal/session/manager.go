// Package session はセッションの発行・解決・検証・破棄を提供する。
//
// このアプリケーションのクライアントにはCookieジャーがないため、
// クライアントは毎リクエストでブラウザ識別子（browser_identity）を送り、
// サーバー側が永続ストアからセッションを逆引きする。
// 「ステートレスなクライアント、ステートフルなサーバー側ルックアップ」が
// このパッケージの契約である。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/secdojo/internal/model"
	"github.com/hitoshi/secdojo/internal/repository"
)

// Metrics はセッション関連メトリクスの記録インターフェース。
type Metrics interface {
	RecordSessionCreated()
	RecordSessionsSwept(count int64)
}

// Manager はセッションのライフサイクルを管理する。
type Manager struct {
	repo    repository.SessionRepository
	ttl     time.Duration
	metrics Metrics
}

// NewManager はManagerを生成する。metricsはnilでもよい。
func NewManager(repo repository.SessionRepository, ttl time.Duration, metrics Metrics) *Manager {
	return &Manager{
		repo:    repo,
		ttl:     ttl,
		metrics: metrics,
	}
}

// CreateSession は暗号的に安全なトークンで新しいセッションを発行する。
// 同一browser_identityの既存の有効セッションはストア側で失効される。
// 書き込みは1回であり、失敗時のリトライは呼び出し側の責任。
func (m *Manager) CreateSession(ctx context.Context, userID, browserIdentity string) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := &model.Session{
		Token:           token,
		UserID:          userID,
		BrowserIdentity: browserIdentity,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.ttl),
	}

	if err := m.repo.CreateSuperseding(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if m.metrics != nil {
		m.metrics.RecordSessionCreated()
	}

	slog.Info("session created",
		slog.String("user_id", userID),
	)

	return session, nil
}

// ResolveSession はブラウザ識別子から最新の有効セッションを解決する。
// 見つからない場合はnilを返す。純粋な読み取りであり、状態を作らない。
func (m *Manager) ResolveSession(ctx context.Context, browserIdentity string) (*model.Session, error) {
	if browserIdentity == "" {
		return nil, nil
	}
	session, err := m.repo.FindActiveByIdentity(ctx, browserIdentity)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return session, nil
}

// ValidateSession はトークンを検証し、対応するユーザーIDを返す。
// 未知のトークン・期限切れは想定内の結果であり、NotAuthenticatedエラーで返す。
func (m *Manager) ValidateSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", model.NewNotAuthenticatedError()
	}

	session, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to validate session: %w", err)
	}
	if session == nil {
		return "", model.NewNotAuthenticatedError()
	}

	return session.UserID, nil
}

// RevokeSession はセッションを破棄する。冪等であり、既に存在しない
// トークンを再度破棄してもエラーにならない。
func (m *Manager) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.repo.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// SweepExpired は期限切れセッションを一括削除し、削除件数を返す。
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := m.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	if m.metrics != nil && deleted > 0 {
		m.metrics.RecordSessionsSwept(deleted)
	}
	return deleted, nil
}

// generateToken は暗号的に安全なセッショントークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
