package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/yoyaku/internal/live"
	"github.com/hitoshi/yoyaku/internal/metrics"
	"github.com/hitoshi/yoyaku/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証・課金
	AuthService    AuthServiceInterface
	BillingService BillingServiceInterface

	// 予約
	AppointmentService AppointmentServiceInterface

	// プッシュ購読
	NotificationService NotificationServiceInterface

	// 問い合わせ
	ContactMailer ContactMailer

	// リアルタイム通知
	Hub      *live.Hub
	Upgrader *websocket.Upgrader

	// メトリクス
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORSMiddleware → AuthMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/api/auth/*）、公開鍵取得、問い合わせ、WebSocket、ヘルスチェック、
// メトリクスは認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	// CORS ミドルウェアを認証より先に適用（プリフライトに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	billingHandler := NewBillingHandler(deps.BillingService)
	apptHandler := NewAppointmentHandler(deps.AppointmentService)
	notifHandler := NewNotificationHandler(deps.NotificationService)
	contactHandler := NewContactHandler(deps.ContactMailer)
	liveHandler := NewLiveHandler(deps.Hub, deps.Upgrader)

	// --- 認証不要のルート ---

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	r.Get("/api/notifications/vapid-public-key", notifHandler.VAPIDPublicKey)
	r.Post("/api/contact", contactHandler.SendContact)
	r.Get("/ws", liveHandler.ServeWS)
	r.Get("/health", healthHandler)

	if deps.MetricsGatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.MetricsGatherer).ServeHTTP)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 予約管理
		r.Route("/api/appointments", func(r chi.Router) {
			r.Get("/", apptHandler.ListAppointments)
			r.Post("/", apptHandler.CreateAppointment)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", apptHandler.UpdateAppointment)
				r.Delete("/", apptHandler.DeleteAppointment)
			})
		})

		// プッシュ購読（購読専用レート制限を追加）
		r.With(deps.RateLimiter.SubscribeMiddleware()).
			Post("/api/notifications/subscribe", notifHandler.Subscribe)

		// プラン変更
		r.Post("/api/billing/subscribe-pro", billingHandler.SubscribePro)
	})

	return r
}

// healthHandler はヘルスチェックエンドポイント。
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
