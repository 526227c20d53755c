package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/hitoshi/pubplan/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	ReorderRate     rate.Limit    // キュー並び替えのレート（req/sec）。30/60
	ReorderBurst    int           // キュー並び替えのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/store、キュー並び替え 30 req/min/store。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		ReorderRate:     rate.Limit(30.0 / 60.0), // 0.5 req/sec
		ReorderBurst:    30,
		CleanupInterval: 5 * time.Minute,
	}
}

// storeLimiter はストアごとのレートリミッターとアクセス時刻を保持する。
type storeLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はストアごとのレート制限を管理する。
// API全般のレート制限とキュー並び替えのレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*storeLimiter

	reorderMu       sync.RWMutex
	reorderLimiters map[string]*storeLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*storeLimiter),
		reorderLimiters: make(map[string]*storeLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// limitKey はレート制限のキーを返す。ストアIDがパスに無い場合は
// リモートアドレスで代替する。
func limitKey(r *http.Request) string {
	if storeID := chi.URLParam(r, "storeID"); storeID != "" {
		return storeID
	}
	return r.RemoteAddr
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limitKey(r)
			limiter := rl.getOrCreateGeneralLimiter(key)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("store_id", key),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ReorderMiddleware はキュー並び替え専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。ドラッグ操作の連打による
// サーバー側の並び替えトランザクション輻輳を抑える。
func (rl *RateLimiter) ReorderMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limitKey(r)
			limiter := rl.getOrCreateReorderLimiter(key)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.ReorderRate)
				slog.Warn("rate limit exceeded",
					slog.String("store_id", key),
					slog.String("limit_type", "reorder"),
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

// ReorderLimiterCount は現在管理されている並び替えリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) ReorderLimiterCount() int {
	rl.reorderMu.RLock()
	defer rl.reorderMu.RUnlock()
	return len(rl.reorderLimiters)
}

// getOrCreateGeneralLimiter はストアのAPI全般リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateGeneralLimiter(key string) *rate.Limiter {
	rl.generalMu.RLock()
	sl, exists := rl.generalLimiters[key]
	rl.generalMu.RUnlock()

	if exists {
		rl.generalMu.Lock()
		sl.lastAccess = time.Now()
		rl.generalMu.Unlock()
		return sl.limiter
	}

	rl.generalMu.Lock()
	defer rl.generalMu.Unlock()

	// ダブルチェック
	if sl, exists := rl.generalLimiters[key]; exists {
		sl.lastAccess = time.Now()
		return sl.limiter
	}

	limiter := rate.NewLimiter(rl.config.GeneralRate, rl.config.GeneralBurst)
	rl.generalLimiters[key] = &storeLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// getOrCreateReorderLimiter はストアの並び替えリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateReorderLimiter(key string) *rate.Limiter {
	rl.reorderMu.RLock()
	sl, exists := rl.reorderLimiters[key]
	rl.reorderMu.RUnlock()

	if exists {
		rl.reorderMu.Lock()
		sl.lastAccess = time.Now()
		rl.reorderMu.Unlock()
		return sl.limiter
	}

	rl.reorderMu.Lock()
	defer rl.reorderMu.Unlock()

	// ダブルチェック
	if sl, exists := rl.reorderLimiters[key]; exists {
		sl.lastAccess = time.Now()
		return sl.limiter
	}

	limiter := rate.NewLimiter(rl.config.ReorderRate, rl.config.ReorderBurst)
	rl.reorderLimiters[key] = &storeLimiter{
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
	for key, sl := range rl.generalLimiters {
		if now.Sub(sl.lastAccess) > ttl {
			delete(rl.generalLimiters, key)
		}
	}
	rl.generalMu.Unlock()

	rl.reorderMu.Lock()
	for key, sl := range rl.reorderLimiters {
		if now.Sub(sl.lastAccess) > ttl {
			delete(rl.reorderLimiters, key)
		}
	}
	rl.reorderMu.Unlock()
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

	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
