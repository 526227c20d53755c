package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/pubplan/internal/config"
	"github.com/hitoshi/pubplan/internal/database"
	"github.com/hitoshi/pubplan/internal/generator"
	"github.com/hitoshi/pubplan/internal/handler"
	"github.com/hitoshi/pubplan/internal/logger"
	"github.com/hitoshi/pubplan/internal/metrics"
	"github.com/hitoshi/pubplan/internal/middleware"
	"github.com/hitoshi/pubplan/internal/post"
	"github.com/hitoshi/pubplan/internal/queue"
	"github.com/hitoshi/pubplan/internal/repository"
	"github.com/hitoshi/pubplan/internal/security"
	"github.com/hitoshi/pubplan/internal/settings"
	"github.com/hitoshi/pubplan/internal/worker/refill"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	storeRepo := repository.NewPostgresStoreRepo(db)
	postsStore := repository.NewPostgresPostsStore(db)
	settingsStore := repository.NewPostgresSettingsStore(db)

	// 3. 記事生成クライアントとサニタイザーの初期化
	genClient := generator.NewClient(
		&http.Client{Timeout: cfg.GeneratorTimeout},
		slog.Default(),
		cfg.GeneratorBaseURL,
	)
	sanitizer := security.NewContentSanitizer()
	queueStore := repository.NewPostgresQueueStore(db, genClient, sanitizer)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. キューマネージャーとドメインサービスの初期化
	manager := queue.NewManager(
		queueStore, queue.NewMemoryRepository(),
		slog.Default(), collector, cfg.RefillDebounce,
	)
	defer manager.CloseAll()

	postService := post.NewPostService(postsStore, slog.Default(), collector)
	settingsService := settings.NewSettingsService(storeRepo, settingsStore, slog.Default())

	// 6. レート制限の初期化（configはreq/min単位なのでreq/secに変換する）
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		ReorderRate:     rate.Limit(float64(cfg.RateLimitReorder) / 60.0),
		ReorderBurst:    cfg.RateLimitReorder,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		QueueManager:    manager,
		QueueMetrics:    queueStore,
		PostService:     postService,
		SettingsService: settingsService,
		StoreRepo:       storeRepo,
	}
	router := handler.NewRouter(deps)

	// 8. ルーターとメトリクスエンドポイントの合成
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", router)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
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
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、キュー充足状況の補充ポーラーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. リポジトリと記事生成クライアントの初期化
	storeRepo := repository.NewPostgresStoreRepo(db)
	genClient := generator.NewClient(
		&http.Client{Timeout: cfg.GeneratorTimeout},
		slog.Default(),
		cfg.GeneratorBaseURL,
	)
	sanitizer := security.NewContentSanitizer()
	queueStore := repository.NewPostgresQueueStore(db, genClient, sanitizer)

	// 3. メトリクスとキューマネージャーの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	manager := queue.NewManager(
		queueStore, queue.NewMemoryRepository(),
		slog.Default(), collector, cfg.RefillDebounce,
	)
	defer manager.CloseAll()

	// 4. 補充ポーラーの初期化
	poller := refill.NewPoller(
		storeRepo, queueStore, manager,
		slog.Default(), cfg.RefillMaxConcurrent,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.RefillPollInterval),
		slog.Int("max_concurrent", cfg.RefillMaxConcurrent),
	)

	// 補充ポーラーをメインgoroutineで実行（ブロッキング）
	poller.Start(ctx, cfg.RefillPollInterval)

	slog.Info("worker stopped gracefully")
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
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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
