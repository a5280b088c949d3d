package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/secdojo/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	ResolveTimeout    time.Duration
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	AuthService     AuthServiceInterface
	CatalogService  CatalogServiceInterface
	ProgressService ProgressServiceInterface
	UserService     UserServiceInterface

	// 運用エンドポイント
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware → SecurityHeadersMiddleware
//	→ IdentityMiddleware → RateLimitMiddleware(General)
//
// 認証ルート（/auth/*）と運用ルート（/healthz, /metrics）はIdentityMiddlewareの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthService)
	lessonHandler := NewLessonHandler(deps.CatalogService)
	progressHandler := NewProgressHandler(deps.ProgressService)
	userHandler := NewUserHandler(deps.UserService)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Get("/healthz", healthHandler.Healthz)
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.SessionResolver, deps.ResolveTimeout))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// レッスンカタログ
		r.Route("/api/lessons", func(r chi.Router) {
			r.Get("/", lessonHandler.ListLessons)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", lessonHandler.GetLesson)
				r.Get("/progress", progressHandler.GetProgress)

				// POST /api/lessons/{id}/attempts - 挑戦送信（専用レート制限を追加）
				r.With(deps.RateLimiter.AttemptMiddleware()).Post("/attempts", progressHandler.SubmitAttempt)
			})
		})

		// ユーザー管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/stats", userHandler.GetStats)
			r.Get("/progress", progressHandler.ListProgress)
			r.Delete("/", userHandler.Withdraw)
		})
	})

	return r
}
