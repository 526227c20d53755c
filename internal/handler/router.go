package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pubplan/internal/middleware"
	"github.com/hitoshi/pubplan/internal/queue"
	"github.com/hitoshi/pubplan/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// キュー
	QueueManager *queue.Manager
	QueueMetrics QueueMetricsInterface

	// 記事
	PostService PostServiceInterface

	// 定期公開設定
	SettingsService SettingsServiceInterface

	// カレンダー
	StoreRepo repository.StoreRepository
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → LoggingMiddleware → RecoveryMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// ヘルスチェック（/healthz）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	queueHandler := NewQueueHandler(deps.QueueManager, deps.QueueMetrics)
	postHandler := NewPostHandler(deps.PostService)
	settingsHandler := NewSettingsHandler(deps.SettingsService)
	calendarHandler := NewCalendarHandler(deps.StoreRepo, deps.PostService, deps.SettingsService, deps.QueueManager)

	// ヘルスチェック（レート制限の対象外）
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// --- ストア単位の管理API ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/stores/{storeID}", func(r chi.Router) {
			// キュー管理
			r.Route("/queue", func(r chi.Router) {
				r.Get("/", queueHandler.GetQueue)
				r.Get("/metrics", queueHandler.Metrics)

				// 並び替え系は専用レート制限を追加
				r.With(deps.RateLimiter.ReorderMiddleware()).Put("/order", queueHandler.Reorder)
				r.With(deps.RateLimiter.ReorderMiddleware()).Post("/move", queueHandler.Move)

				r.Post("/refill", queueHandler.Refill)
				r.Post("/{postID}/regenerate-title", queueHandler.RegenerateTitle)
			})

			// 記事管理
			r.Route("/posts", func(r chi.Router) {
				r.Get("/", postHandler.ListPosts)

				r.Route("/{postID}", func(r chi.Router) {
					r.Post("/conflicts", postHandler.CheckConflicts)
					r.Post("/schedule", postHandler.Schedule)
				})
			})

			// 定期公開設定
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.GetSettings)
				r.Put("/", settingsHandler.SaveSettings)
			})

			// カレンダービュー
			r.Route("/calendar", func(r chi.Router) {
				r.Get("/month", calendarHandler.MonthView)
				r.Get("/week", calendarHandler.WeekView)
				r.Get("/list", calendarHandler.ListView)
			})
		})
	})

	return r
}
