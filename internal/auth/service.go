// Package auth はユーザー登録・ログイン・セッション束縛を提供する。
//
// 解決済みセッションとユーザー識別のマッピング（Auth Façade）であり、
// セッションそのもののライフサイクルはsessionパッケージが持つ。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/secdojo/internal/model"
	"github.com/hitoshi/secdojo/internal/repository"
)

// SessionManager は認証サービスが必要とするセッション操作のインターフェース。
// session.Managerの部分集合として定義する。
type SessionManager interface {
	CreateSession(ctx context.Context, userID, browserIdentity string) (*model.Session, error)
	ResolveSession(ctx context.Context, browserIdentity string) (*model.Session, error)
	ValidateSession(ctx context.Context, token string) (string, error)
	RevokeSession(ctx context.Context, token string) error
}

// Metrics は認証関連メトリクスの記録インターフェース。
type Metrics interface {
	RecordSignup()
	RecordLogin()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int
	// ResolveTimeout はブラウザ識別子からのセッション解決に許容する時間。
	// 超過した場合は「未認証」として扱う（フェイルクローズ）。
	ResolveTimeout time.Duration
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	sessions SessionManager
	config   ServiceConfig
	metrics  Metrics
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(userRepo repository.UserRepository, sessions SessionManager, config ServiceConfig, metrics Metrics) *Service {
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = 3 * time.Second
	}
	return &Service{
		userRepo: userRepo,
		sessions: sessions,
		config:   config,
		metrics:  metrics,
	}
}

// Signup は新規ユーザーを作成する。
// ユーザー名が既に使われている場合はUSERNAME_TAKENを返す。
func (s *Service) Signup(ctx context.Context, username, password string) (*model.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		TotalXP:      0,
		Level:        1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, model.NewUsernameTakenError(username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSignup()
	}
	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("username", username),
	)

	return user, nil
}

// Login は認証情報を検証し、セッションを発行する。
// ユーザーが存在しない場合もパスワード比較を実行し、
// 応答時間からユーザーの存在が推測できないようにする。
func (s *Service) Login(ctx context.Context, username, password, browserIdentity string) (*model.Session, *model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		CompareDummy(password)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if !VerifyPassword(user.PasswordHash, password) {
		slog.Warn("login failed",
			slog.String("username", username),
		)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.sessions.CreateSession(ctx, user.ID, browserIdentity)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLogin()
	}
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	return session, user, nil
}

// Logout はセッションを破棄する。冪等。
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.RevokeSession(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// CurrentUser はブラウザ識別子から現在のユーザーを取得する。
// セッション解決はResolveTimeoutで打ち切られ、タイムアウト・期限切れ・
// 置き換え済みのいずれもNOT_AUTHENTICATEDとして扱う（フェイルクローズ）。
// デフォルトの識別で認証済みになることは決してない。
func (s *Service) CurrentUser(ctx context.Context, browserIdentity string) (*model.User, error) {
	if browserIdentity == "" {
		return nil, model.NewNotAuthenticatedError()
	}

	resolveCtx, cancel := context.WithTimeout(ctx, s.config.ResolveTimeout)
	defer cancel()

	session, err := s.sessions.ResolveSession(resolveCtx, browserIdentity)
	if err != nil {
		slog.Warn("session resolution failed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewNotAuthenticatedError()
	}
	if session == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	// 解決と検証の間にトークンが破棄・置き換えされている可能性があるため、
	// 解決済みトークンをあらためて検証してからユーザーを引く。
	userID, err := s.sessions.ValidateSession(resolveCtx, session.Token)
	if err != nil {
		return nil, model.NewNotAuthenticatedError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	return user, nil
}

// validateUsername はユーザー名の形式を検証する。
func validateUsername(username string) error {
	if len(username) < 3 || len(username) > 50 {
		return &model.APIError{
			Code:     "INVALID_USERNAME",
			Message:  "ユーザー名は3文字以上50文字以内で指定してください。",
			Category: "validation",
			Action:   "ユーザー名を確認してください。",
		}
	}
	return nil
}

// validatePassword はパスワードの最低要件を検証する。
func validatePassword(password string) error {
	if len(password) < 8 {
		return &model.APIError{
			Code:     "INVALID_PASSWORD",
			Message:  "パスワードは8文字以上で指定してください。",
			Category: "validation",
			Action:   "より長いパスワードを指定してください。",
		}
	}
	return nil
}
