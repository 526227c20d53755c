// Package refill はキュー充足状況のバックグラウンド巡回を提供する。
// 全ストアのキュー件数を定期観測し、目標未満のストアのリコンサイラへ
// 補充シグナルを通知する。実際の補充判断（デバウンス・再計測・冪等制御）は
// リコンサイラ側の責務。
package refill

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pubplan/internal/queue"
	"github.com/hitoshi/pubplan/internal/repository"
)

// Poller はキュー充足状況の巡回ワーカー。
// 1分間隔のティッカーで全ストアを巡回し、semaphoreパターンで
// 最大並列数を制御しながら充足状況を観測する。
type Poller struct {
	storeRepo      repository.StoreRepository
	queueStore     repository.QueueStore
	manager        *queue.Manager
	logger         *slog.Logger
	maxConcurrency int
}

// NewPoller はPollerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewPoller(
	storeRepo repository.StoreRepository,
	queueStore repository.QueueStore,
	manager *queue.Manager,
	logger *slog.Logger,
	maxConcurrency int,
) *Poller {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Poller{
		storeRepo:      storeRepo,
		queueStore:     queueStore,
		manager:        manager,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでポーラーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("補充ポーラーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", p.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := p.RunOnce(ctx); err != nil {
		p.logger.Error("補充巡回の実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("補充ポーラーを停止しました")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error("補充巡回の実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全ストアの充足状況を1回観測し、各リコンサイラへ通知する。
// semaphoreパターンで並列数を制御する。
func (p *Poller) RunOnce(ctx context.Context) error {
	start := time.Now()

	storeIDs, err := p.storeRepo.ListIDs(ctx)
	if err != nil {
		return err
	}

	if len(storeIDs) == 0 {
		return nil
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup

	for _, storeID := range storeIDs {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			metrics, err := p.queueStore.Metrics(ctx, id)
			if err != nil {
				p.logger.Error("キュー充足状況の観測に失敗しました",
					slog.String("store_id", id),
					slog.String("error", err.Error()),
				)
				return
			}
			p.manager.Get(id).NotifyMetrics(*metrics)
		}(storeID)
	}

	wg.Wait()

	duration := time.Since(start)
	p.logger.Info("補充巡回が完了しました",
		slog.Int("store_count", len(storeIDs)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
