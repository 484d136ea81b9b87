package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/kodbank/internal/metrics"
	"github.com/hitoshi/kodbank/internal/middleware"
)

// ヘルスチェックでのDB疎通確認の打ち切り時間
const healthCheckTimeout = 2 * time.Second

// HealthChecker はヘルスチェックで依存先の疎通を確認するインターフェース。
// *sql.DB がそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          middleware.CredentialVerifier
	TokenValidator    middleware.TokenValidator
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	Logger            *slog.Logger

	// 監視（nilの場合は無効）
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// サービス
	AuthService     AuthServiceInterface
	LedgerService   LedgerServiceInterface
	TransferService TransferServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → SecurityHeaders → CORS → Logging → StatusMetrics
//	/api/auth/register, /api/auth/login: RateLimit(Auth)
//	/api/banking/*: Auth → RateLimit(General)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.Metrics))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	bankingHandler := NewBankingHandler(deps.LedgerService, deps.TransferService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})
		// ログアウトはトークンがあれば失効させるだけなので認証を要求しない
		r.Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	r.Route("/api/banking", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Verifier, deps.TokenValidator, deps.Metrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/balance", bankingHandler.Balance)
		r.Post("/deposit", bankingHandler.Deposit)
		r.Post("/withdraw", bankingHandler.Withdraw)
		r.Post("/transfer", bankingHandler.Transfer)
		r.Get("/transactions", bankingHandler.Transactions)
		r.Get("/profile", bankingHandler.Profile)
	})

	return r
}

// healthHandler はプロセスとDBの疎通を返すハンドラー。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
