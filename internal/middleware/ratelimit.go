package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	SubscribeRate   rate.Limit    // プッシュ購読登録のレート（req/sec）。10/60
	SubscribeBurst  int           // プッシュ購読登録のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 要件: API全般 120 req/min/user、プッシュ購読登録 10 req/min/user
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfigPerMinute(120, 10)
}

// RateLimiterConfigPerMinute はreq/min単位の上限からレート制限設定を構築する。
// rate.Limitはreq/sec単位のため60で割って換算し、バーストサイズは
// 1分あたりの上限と同じ値にする。0以下の値はデフォルト値に置き換える。
func RateLimiterConfigPerMinute(generalPerMinute, subscribePerMinute int) RateLimiterConfig {
	if generalPerMinute <= 0 {
		generalPerMinute = 120
	}
	if subscribePerMinute <= 0 {
		subscribePerMinute = 10
	}
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		SubscribeRate:   rate.Limit(float64(subscribePerMinute) / 60.0),
		SubscribeBurst:  subscribePerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般のレート制限とプッシュ購読登録のレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*userLimiter

	subscribeMu       sync.RWMutex
	subscribeLimiters map[string]*userLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:            config,
		generalLimiters:   make(map[string]*userLimiter),
		subscribeLimiters: make(map[string]*userLimiter),
		stopCh:            make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある（AuthMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreateLimiter(userID, &rl.generalMu, rl.generalLimiters, rl.config.GeneralRate, rl.config.GeneralBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SubscribeMiddleware はプッシュ購読登録専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) SubscribeMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreateLimiter(userID, &rl.subscribeMu, rl.subscribeLimiters, rl.config.SubscribeRate, rl.config.SubscribeBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.SubscribeRate)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", "subscribe"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// SubscribeLimiterCount は現在管理されている購読登録リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) SubscribeLimiterCount() int {
	rl.subscribeMu.RLock()
	defer rl.subscribeMu.RUnlock()
	return len(rl.subscribeLimiters)
}

// getOrCreateLimiter はユーザーのリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLimiter(userID string, mu *sync.RWMutex, limiters map[string]*userLimiter, r rate.Limit, burst int) *rate.Limiter {
	mu.RLock()
	ul, exists := limiters[userID]
	mu.RUnlock()

	if exists {
		mu.Lock()
		ul.lastAccess = time.Now()
		mu.Unlock()
		return ul.limiter
	}

	mu.Lock()
	defer mu.Unlock()

	// ダブルチェック
	if ul, exists := limiters[userID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(r, burst)
	limiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for userID, ul := range rl.generalLimiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.generalLimiters, userID)
		}
	}
	rl.generalMu.Unlock()

	rl.subscribeMu.Lock()
	for userID, ul := range rl.subscribeLimiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.subscribeLimiters, userID)
		}
	}
	rl.subscribeMu.Unlock()
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}
