// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/secdojo/internal/model"
)

// IdentityHeaderName はブラウザ識別子を運ぶリクエストヘッダー名。
// Cookieジャーを持たないクライアントが毎リクエストで再送する。
const IdentityHeaderName = "X-Browser-Identity"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// sessionTokenContextKey はリクエストコンテキストにセッショントークンを格納するためのキー。
var sessionTokenContextKey = contextKey("session_token")

// SessionResolver はブラウザ識別子からセッションを解決するインターフェース。
// session.Managerの部分集合として定義する。
type SessionResolver interface {
	ResolveSession(ctx context.Context, browserIdentity string) (*model.Session, error)
}

// NewIdentityMiddleware はX-Browser-Identityヘッダーからセッションを解決し、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーIDとセッショントークンをリクエストコンテキストに注入する。
// 解決がresolveTimeoutを超えた場合・失敗した場合はいずれも401を返す
// （フェイルクローズ。デフォルトの識別で認証済みになることはない）。
func NewIdentityMiddleware(resolver SessionResolver, resolveTimeout time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. ヘッダーからブラウザ識別子を取得
			identity := r.Header.Get(IdentityHeaderName)
			if identity == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
				return
			}

			// 2. 期限付きでセッションを解決
			ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
			session, err := resolver.ResolveSession(ctx, identity)
			cancel()
			if err != nil {
				slog.Warn("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
				return
			}

			// 3. 認証済みユーザーIDとトークンをコンテキストに注入
			reqCtx := context.WithValue(r.Context(), userIDContextKey, session.UserID)
			reqCtx = context.WithValue(reqCtx, sessionTokenContextKey, session.Token)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 識別ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// SessionTokenFromContext はリクエストコンテキストからセッショントークンを取得する。
func SessionTokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(sessionTokenContextKey).(string)
	if !ok || token == "" {
		return "", fmt.Errorf("session token not found in context")
	}
	return token, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithSessionToken はコンテキストにセッショントークンを注入する。
func ContextWithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenContextKey, token)
}
