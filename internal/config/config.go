package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Web Push (VAPID)
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// Email
	ResendAPIKey string // 未設定の場合は送信をログ出力で代替する
	EmailFrom    string
	ContactTo    string

	// Reminder
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	PushTimeout      time.Duration

	// Plan sweep
	PlanSweepInterval time.Duration

	// Rate Limit
	RateLimitGeneral   int
	RateLimitSubscribe int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.VAPIDPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	if cfg.VAPIDPublicKey == "" {
		missing = append(missing, "VAPID_PUBLIC_KEY")
	}

	cfg.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")
	if cfg.VAPIDPrivateKey == "" {
		missing = append(missing, "VAPID_PRIVATE_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", time.Hour)
	cfg.VAPIDSubject = getEnvString("VAPID_SUBJECT", "mailto:support@yoyaku.example.com")
	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.EmailFrom = getEnvString("EMAIL_FROM", "Yoyaku <noreply@yoyaku.example.com>")
	cfg.ContactTo = getEnvString("CONTACT_TO", "support@yoyaku.example.com")
	cfg.ReminderInterval = getEnvDuration("REMINDER_INTERVAL", time.Minute)
	cfg.ReminderWindow = getEnvDuration("REMINDER_WINDOW", 15*time.Minute)
	cfg.PushTimeout = getEnvDuration("PUSH_TIMEOUT", 10*time.Second)
	cfg.PlanSweepInterval = getEnvDuration("PLAN_SWEEP_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubscribe = getEnvInt("RATE_LIMIT_SUBSCRIBE", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if !strings.HasPrefix(cfg.VAPIDSubject, "mailto:") && !strings.HasPrefix(cfg.VAPIDSubject, "https://") {
		return nil, fmt.Errorf("VAPID_SUBJECT must start with mailto: or https:// : %s", cfg.VAPIDSubject)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
