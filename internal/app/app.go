// Package app はアプリケーションの起動とワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/yoyaku/internal/appointment"
	"github.com/hitoshi/yoyaku/internal/auth"
	"github.com/hitoshi/yoyaku/internal/config"
	"github.com/hitoshi/yoyaku/internal/database"
	"github.com/hitoshi/yoyaku/internal/handler"
	"github.com/hitoshi/yoyaku/internal/live"
	"github.com/hitoshi/yoyaku/internal/logger"
	"github.com/hitoshi/yoyaku/internal/mailer"
	"github.com/hitoshi/yoyaku/internal/metrics"
	"github.com/hitoshi/yoyaku/internal/middleware"
	"github.com/hitoshi/yoyaku/internal/notification"
	"github.com/hitoshi/yoyaku/internal/notifier"
	"github.com/hitoshi/yoyaku/internal/repository"
	"github.com/hitoshi/yoyaku/internal/security"
	"github.com/hitoshi/yoyaku/internal/worker/plansweep"
	"github.com/hitoshi/yoyaku/internal/worker/reminder"
)

// Init はアプリケーションの初期化を行う。
// .envファイル（存在すれば）と環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .env の読み込み（ファイルがなければ環境変数のみを使用）
	_ = godotenv.Load()

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーと
// バックグラウンドワーカー（リマインダーディスパッチャー、プランスイーパー）を起動する。
// リアルタイム通知はWebSocket接続と同一プロセスで配信する必要があるため、
// ワーカーを別プロセスに分離しない。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	apptRepo := repository.NewPostgresAppointmentRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 通知チャネルの初期化
	// Web Pushエンドポイントはユーザー由来の任意URLであるため、
	// SSRF防止付きHTTPクライアントを使用する
	guard := security.NewEndpointGuard()
	expoClient := notifier.NewExpoClient(
		&http.Client{Timeout: cfg.PushTimeout},
		slog.Default(),
	)
	webPushSender := notifier.NewWebPushSender(notifier.WebPushConfig{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subject:         cfg.VAPIDSubject,
	}, guard.NewSafeClient(cfg.PushTimeout), slog.Default())

	mailSender := mailer.New(mailer.Config{
		APIKey:    cfg.ResendAPIKey,
		From:      cfg.EmailFrom,
		ContactTo: cfg.ContactTo,
		BaseURL:   cfg.BaseURL,
	}, slog.Default())

	// 5. リアルタイム通知ハブの初期化
	hub := live.NewHub(slog.Default())

	// 6. ドメインサービスの初期化
	authService := auth.NewService(userRepo, auth.ServiceConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	})
	apptService := appointment.NewService(apptRepo, userRepo, mailSender, slog.Default())
	notifService := notification.NewService(
		userRepo, guard, expoClient, webPushSender, cfg.VAPIDPublicKey, slog.Default(),
	)

	// 7. バックグラウンドワーカーの初期化
	dispatcher := reminder.NewDispatcher(
		apptRepo, userRepo, expoClient, webPushSender, mailSender, hub,
		collector, slog.Default(), cfg.ReminderWindow,
	)
	reminderScheduler := reminder.NewScheduler(dispatcher, slog.Default())
	sweeper := plansweep.NewSweeper(userRepo, collector, slog.Default())

	// 8. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitSubscribe),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService:    authService,
		BillingService: authService,

		AppointmentService:  apptService,
		NotificationService: notifService,
		ContactMailer:       mailSender,

		Hub:      hub,
		Upgrader: &websocket.Upgrader{},

		MetricsGatherer: registry,
	})

	// 9. バックグラウンド処理の起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	go reminderScheduler.Start(ctx, cfg.ReminderInterval)
	go sweeper.Start(ctx, cfg.PlanSweepInterval)

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Duration("reminder_interval", cfg.ReminderInterval),
			slog.Duration("plan_sweep_interval", cfg.PlanSweepInterval),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	// ワーカーを先に止めてから接続を閉じる
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
