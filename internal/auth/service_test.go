package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/secdojo/internal/model"
	"github.com/lib/pq"
)

// --- モック ---

type mockUserRepo struct {
	createFn         func(ctx context.Context, user *model.User) error
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFn func(ctx context.Context, username string) (*model.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return m.createFn(ctx, user)
}
func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.findByUsernameFn(ctx, username)
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}

type mockSessionManager struct {
	createSessionFn   func(ctx context.Context, userID, browserIdentity string) (*model.Session, error)
	resolveSessionFn  func(ctx context.Context, browserIdentity string) (*model.Session, error)
	validateSessionFn func(ctx context.Context, token string) (string, error)
	revokeSessionFn   func(ctx context.Context, token string) error
}

func (m *mockSessionManager) CreateSession(ctx context.Context, userID, browserIdentity string) (*model.Session, error) {
	return m.createSessionFn(ctx, userID, browserIdentity)
}
func (m *mockSessionManager) ResolveSession(ctx context.Context, browserIdentity string) (*model.Session, error) {
	return m.resolveSessionFn(ctx, browserIdentity)
}
func (m *mockSessionManager) ValidateSession(ctx context.Context, token string) (string, error) {
	if m.validateSessionFn != nil {
		return m.validateSessionFn(ctx, token)
	}
	return "", model.NewNotAuthenticatedError()
}
func (m *mockSessionManager) RevokeSession(ctx context.Context, token string) error {
	if m.revokeSessionFn != nil {
		return m.revokeSessionFn(ctx, token)
	}
	return nil
}

func testConfig() ServiceConfig {
	return ServiceConfig{BcryptCost: 4, ResolveTimeout: time.Second}
}

// --- テスト ---

// TestService_Signup_CreatesLevelOneUser は新規ユーザーがXP 0・レベル1で
// 作成されることを検証する。
func TestService_Signup_CreatesLevelOneUser(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(userRepo, &mockSessionManager{}, testConfig(), nil)

	user, err := svc.Signup(context.Background(), "alice", "secretpassword")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created == nil {
		t.Fatal("repository Create was not called")
	}
	if user.TotalXP != 0 || user.Level != 1 || user.TotalLessonsCompleted != 0 {
		t.Errorf("new user = xp %d / level %d / completed %d, want 0 / 1 / 0",
			user.TotalXP, user.Level, user.TotalLessonsCompleted)
	}
	if user.ID == "" {
		t.Error("new user must have a generated ID")
	}
	if user.PasswordHash == "secretpassword" {
		t.Error("password must be stored hashed, not in plain text")
	}
	if !VerifyPassword(user.PasswordHash, "secretpassword") {
		t.Error("stored hash should verify against the original password")
	}
}

// TestService_Signup_Validation はユーザー名・パスワードの形式検証を確認する。
func TestService_Signup_Validation(t *testing.T) {
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			t.Fatal("Create must not be called for invalid input")
			return nil
		},
	}
	svc := NewService(userRepo, &mockSessionManager{}, testConfig(), nil)

	tests := []struct {
		name     string
		username string
		password string
		wantCode string
	}{
		{"username too short", "ab", "validpassword", "INVALID_USERNAME"},
		{"username too long", string(make([]byte, 51)), "validpassword", "INVALID_USERNAME"},
		{"password too short", "alice", "short", "INVALID_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tt.username, tt.password)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

// TestService_Signup_DuplicateUsername はunique制約違反が
// USERNAME_TAKENに変換されることを検証する。
func TestService_Signup_DuplicateUsername(t *testing.T) {
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return &pq.Error{Code: "23505"}
		},
	}
	svc := NewService(userRepo, &mockSessionManager{}, testConfig(), nil)

	_, err := svc.Signup(context.Background(), "alice", "validpassword")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUsernameTaken {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeUsernameTaken)
	}
}

// TestService_Login_Success は正しい認証情報でセッションが発行されることを検証する。
func TestService_Login_Success(t *testing.T) {
	hash, err := HashPassword("validpassword", 4)
	if err != nil {
		t.Fatalf("failed to prepare hash: %v", err)
	}

	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: "u-1", Username: username, PasswordHash: hash}, nil
		},
	}
	sessions := &mockSessionManager{
		createSessionFn: func(ctx context.Context, userID, browserIdentity string) (*model.Session, error) {
			return &model.Session{Token: "tok", UserID: userID, BrowserIdentity: browserIdentity}, nil
		},
	}
	svc := NewService(userRepo, sessions, testConfig(), nil)

	session, user, err := svc.Login(context.Background(), "alice", "validpassword", "bid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.UserID != "u-1" || session.BrowserIdentity != "bid-1" {
		t.Errorf("session = %+v, want user u-1 / identity bid-1", session)
	}
	if user.ID != "u-1" {
		t.Errorf("user.ID = %q, want u-1", user.ID)
	}
}

// TestService_Login_WrongPassword はパスワード不一致が
// INVALID_CREDENTIALSになることを検証する。
func TestService_Login_WrongPassword(t *testing.T) {
	hash, err := HashPassword("validpassword", 4)
	if err != nil {
		t.Fatalf("failed to prepare hash: %v", err)
	}

	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: "u-1", Username: username, PasswordHash: hash}, nil
		},
	}
	svc := NewService(userRepo, &mockSessionManager{}, testConfig(), nil)

	_, _, err = svc.Login(context.Background(), "alice", "wrong", "bid-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

// TestService_Login_UnknownUser はユーザー不在でも同じ
// INVALID_CREDENTIALSが返ることを検証する（存在の有無を区別しない）。
func TestService_Login_UnknownUser(t *testing.T) {
	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return nil, nil
		},
	}
	sessionCalled := false
	sessions := &mockSessionManager{
		createSessionFn: func(ctx context.Context, userID, browserIdentity string) (*model.Session, error) {
			sessionCalled = true
			return nil, nil
		},
	}
	svc := NewService(userRepo, sessions, testConfig(), nil)

	_, _, err := svc.Login(context.Background(), "nobody", "whatever1", "bid-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
	if sessionCalled {
		t.Error("session must not be created for unknown user")
	}
}

// TestService_CurrentUser_FailClosed はセッション解決の失敗・不在・タイムアウトが
// すべてNOT_AUTHENTICATEDになることを検証する。
func TestService_CurrentUser_FailClosed(t *testing.T) {
	tests := []struct {
		name      string
		identity  string
		resolveFn func(ctx context.Context, browserIdentity string) (*model.Session, error)
	}{
		{
			name:     "empty identity",
			identity: "",
			resolveFn: func(ctx context.Context, browserIdentity string) (*model.Session, error) {
				t.Fatal("resolver must not be called for empty identity")
				return nil, nil
			},
		},
		{
			name:     "no session",
			identity: "bid-1",
			resolveFn: func(ctx context.Context, browserIdentity string) (*model.Session, error) {
				return nil, nil
			},
		},
		{
			name:     "store error",
			identity: "bid-1",
			resolveFn: func(ctx context.Context, browserIdentity string) (*model.Session, error) {
				return nil, errors.New("store unreachable")
			},
		},
		{
			name:     "resolution timeout",
			identity: "bid-1",
			resolveFn: func(ctx context.Context, browserIdentity string) (*model.Session, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(
				&mockUserRepo{},
				&mockSessionManager{resolveSessionFn: tt.resolveFn},
				ServiceConfig{BcryptCost: 4, ResolveTimeout: 20 * time.Millisecond},
				nil,
			)

			_, err := svc.CurrentUser(context.Background(), tt.identity)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != model.ErrCodeNotAuthenticated {
				t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeNotAuthenticated)
			}
		})
	}
}

// TestService_CurrentUser_Success は有効なセッションからユーザーが返ることを検証する。
func TestService_CurrentUser_Success(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Username: "alice", TotalXP: 1050, Level: 2}, nil
		},
	}
	sessions := &mockSessionManager{
		resolveSessionFn: func(ctx context.Context, browserIdentity string) (*model.Session, error) {
			return &model.Session{Token: "tok", UserID: "u-1", BrowserIdentity: browserIdentity}, nil
		},
		validateSessionFn: func(ctx context.Context, token string) (string, error) {
			if token != "tok" {
				t.Errorf("validated token = %q, want tok", token)
			}
			return "u-1", nil
		},
	}
	svc := NewService(userRepo, sessions, testConfig(), nil)

	user, err := svc.CurrentUser(context.Background(), "bid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "u-1" || user.Username != "alice" {
		t.Errorf("user = %+v, want u-1 / alice", user)
	}
}

// TestService_CurrentUser_RevokedAfterResolve は解決と検証の間に破棄された
// トークンがNOT_AUTHENTICATEDになることを検証する。解決結果のuser_idを
// そのまま信用せず、トークンの再検証を通す。
func TestService_CurrentUser_RevokedAfterResolve(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			t.Fatal("user lookup must not happen for a revoked token")
			return nil, nil
		},
	}
	sessions := &mockSessionManager{
		resolveSessionFn: func(ctx context.Context, browserIdentity string) (*model.Session, error) {
			return &model.Session{Token: "tok-stale", UserID: "u-1", BrowserIdentity: browserIdentity}, nil
		},
		validateSessionFn: func(ctx context.Context, token string) (string, error) {
			// 解決直後にログアウトされたケース
			return "", model.NewNotAuthenticatedError()
		},
	}
	svc := NewService(userRepo, sessions, testConfig(), nil)

	_, err := svc.CurrentUser(context.Background(), "bid-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeNotAuthenticated {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeNotAuthenticated)
	}
}
