package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/secdojo/internal/middleware"
	"github.com/hitoshi/secdojo/internal/model"
)

// sessionTokenHeader はログアウト等で明示的にトークンを参照する際のヘッダー名。
// トークンはログイン時に1度だけ返され、クライアントが保持して送り返す。
const sessionTokenHeader = "X-Session-Token"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password, browserIdentity string) (*model.Session, *model.User, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, browserIdentity string) (*model.User, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// credentialsRequest はサインアップ・ログインの共通リクエストボディ。
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンス。
// session_tokenはここで1度だけ返される。以降のリクエストは
// X-Browser-Identityヘッダーからのサーバー側逆引きで認証される。
type loginResponse struct {
	SessionToken string       `json:"session_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         userResponse `json:"user"`
}

// Signup は新規ユーザーを登録する。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "リクエストボディを解析できません。")
		return
	}

	user, err := h.service.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

// Login は認証情報を検証し、セッションを発行する。
// ブラウザ識別子はX-Browser-Identityヘッダーで受け取る。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	identity := r.Header.Get(middleware.IdentityHeaderName)
	if identity == "" {
		writeBadRequest(w, "X-Browser-Identityヘッダーが必要です。")
		return
	}

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "リクエストボディを解析できません。")
		return
	}

	session, user, err := h.service.Login(r.Context(), req.Username, req.Password, identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		SessionToken: session.Token,
		ExpiresAt:    session.ExpiresAt,
		User:         newUserResponse(user),
	})
}

// Logout はセッションを破棄する。冪等であり、既に無効なトークンでも204を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(sessionTokenHeader)

	if err := h.service.Logout(r.Context(), token); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me はブラウザ識別子から現在のユーザーを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := r.Header.Get(middleware.IdentityHeaderName)

	user, err := h.service.CurrentUser(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}
