package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/weatherman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ヘルスチェック
	HealthChecker HealthChecker

	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 天気
	WeatherService WeatherServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware → SecurityHeadersMiddleware → CSRFMiddleware → (SessionMiddleware)
//
// 認証ルート（サインアップ・ログイン・OAuthフロー）はセッションミドルウェアの外、
// 天気ルートと/auth/meはセッションミドルウェアの内側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	weatherHandler := NewWeatherHandler(deps.WeatherService)

	// --- 認証不要のルート ---

	// ヘルスチェック（Dockerのhealthcheckサブコマンドが叩く）
	r.Get("/health", NewHealthHandler(deps.HealthChecker))

	// ローカル認証
	r.Post("/signup", authHandler.Signup)
	r.Post("/login", authHandler.Login)
	// ログアウトは未認証でも成功する（冪等）
	r.Post("/logout", authHandler.Logout)

	// Google OAuthフロー
	r.Route("/auth/google", func(r chi.Router) {
		r.Get("/", authHandler.GoogleLogin)
		r.Get("/callback", authHandler.GoogleCallback)
	})

	// CSRFトークン取得
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))

		r.Get("/auth/me", authHandler.Me)

		// 認証ゲートの検証対象となる保護リソース
		r.Get("/weather", weatherHandler.Welcome)

		// 天気プロキシ
		r.Route("/api/weather", func(r chi.Router) {
			r.Get("/geocode", weatherHandler.Geocode)
			r.Get("/current", weatherHandler.Current)
			r.Get("/forecast", weatherHandler.Forecast)
		})
	})

	return r
}
