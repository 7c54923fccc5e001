package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/notekeeper/internal/metrics"
	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 共通
	Logger   *slog.Logger
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
	Health   HealthChecker
	Renderer PageRenderer

	// Cookie
	Cookies        middleware.CookieConfig
	SessionCookies *middleware.SessionCookies
	Flash          *middleware.Flash

	// 認証
	Resolver      middleware.PrincipalResolver
	Users         RegistrationService
	Authenticator AuthenticatorInterface
	Sessions      SessionService

	// ノート
	Notes NoteServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → Session → Logging → CSRF → Guard
//
// 静的ファイル、/health、/metrics はセッション解決とCSRF検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Renderer))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMetricsMiddleware(m))

	authHandler := NewAuthHandler(deps.Users, deps.Authenticator, deps.Sessions, deps.SessionCookies, deps.Flash, deps.Renderer, m)
	noteHandler := NewNoteHandler(deps.Notes, deps.Flash, deps.Renderer, m)
	pageHandler := NewPageHandler(deps.Notes, deps.Renderer, deps.Health)

	r.NotFound(pageHandler.NotFound)
	r.MethodNotAllowed(pageHandler.MethodNotAllowed)

	// --- インフラ系ルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(logger))

		r.Get("/health", pageHandler.Health)
		if deps.Gatherer != nil {
			r.Handle("/metrics", metrics.Handler(deps.Gatherer))
		}
		r.Handle("/static/*", view.StaticHandler())
	})

	// --- 画面ルート ---
	// ミドルウェアスタック: Session → Logging → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Resolver, deps.SessionCookies))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewCSRFMiddleware(deps.Cookies, deps.Renderer))

		guestOnly := middleware.NewGuardMiddleware(middleware.ForwardIfAuthenticated, deps.Flash)
		authOnly := middleware.NewGuardMiddleware(middleware.RequireAuthenticated, deps.Flash)

		r.Get("/", pageHandler.Index)
		r.With(authOnly).Get("/dashboard", pageHandler.Dashboard)

		// 認証ルート。/auth 配下にも同じハンドラーをマウントする
		authRoutes := func(r chi.Router) {
			r.With(guestOnly).Get("/register", authHandler.RegisterForm)
			r.With(guestOnly).Post("/register", authHandler.Register)
			r.With(guestOnly).Get("/login", authHandler.LoginForm)
			r.Post("/login", authHandler.Login)
			r.Get("/logout", authHandler.Logout)
			r.Post("/logout", authHandler.Logout)
		}
		authRoutes(r)
		r.Route("/auth", authRoutes)

		// ノート管理
		r.Route("/notes", func(r chi.Router) {
			r.Use(authOnly)

			r.Get("/", noteHandler.List)
			r.Post("/create", noteHandler.Create)
			r.Get("/edit/{id}", noteHandler.EditForm)
			r.Post("/edit/{id}", noteHandler.Update)
			r.Get("/delete/{id}", noteHandler.Delete)
			r.Post("/delete/{id}", noteHandler.Delete)
		})
	})

	return r
}
