// Package post は記事の一覧取得と公開予約のサービスを提供する。
package post

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/pubplan/internal/conflict"
	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/repository"
)

// validStatuses は有効なステータスフィルタのセット。
var validStatuses = map[model.PostStatus]bool{
	model.PostStatusDraft:     true,
	model.PostStatusQueued:    true,
	model.PostStatusScheduled: true,
	model.PostStatusPublished: true,
}

// Recorder は記事操作のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordConflictCheck(severity string)
	RecordScheduleLatency(duration time.Duration)
}

// NopRecorder は何も記録しないRecorder実装。
type NopRecorder struct{}

func (NopRecorder) RecordConflictCheck(string)          {}
func (NopRecorder) RecordScheduleLatency(time.Duration) {}

// PostService は記事の一覧取得・公開予約のサービス。
type PostService struct {
	postsStore repository.PostsStore
	advisor    *conflict.Advisor
	logger     *slog.Logger
	metrics    Recorder
}

// NewPostService はPostServiceの新しいインスタンスを生成する。
// metricsがnilの場合はNopRecorderを使用する。
func NewPostService(postsStore repository.PostsStore, logger *slog.Logger, metrics Recorder) *PostService {
	if metrics == nil {
		metrics = NopRecorder{}
	}
	return &PostService{
		postsStore: postsStore,
		advisor:    conflict.NewAdvisor(postsStore, logger),
		logger:     logger,
		metrics:    metrics,
	}
}

// ListByStatus はストアの記事一覧をステータスで絞り込んで返す。
func (s *PostService) ListByStatus(ctx context.Context, storeID string, status model.PostStatus) ([]model.Post, error) {
	if !validStatuses[status] {
		return nil, model.NewInvalidStatusError(string(status))
	}
	return s.postsStore.ListByStatus(ctx, storeID, status)
}

// CheckScheduleConflicts は候補日時の衝突を深刻度付きで返す。
// スケジューリングモーダルが日付・記事の選択のたびに呼び出す。
// 選択が変わった後に届いた古い応答はアドバイザが破棄する。
func (s *PostService) CheckScheduleConflicts(ctx context.Context, storeID, postID string, at time.Time) ([]model.ConflictRecord, error) {
	records, err := s.advisor.Check(ctx, storeID, postID, at)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		s.metrics.RecordConflictCheck(string(rec.Severity))
	}
	return records, nil
}

// Schedule は記事を指定日時で公開予約する。
// high深刻度の衝突が検出された場合、confirmedがfalseの間は
// CONFIRMATION_REQUIREDを返してコミットを保留する。衝突チェック自体が
// 失敗した場合は予約を止めず、チェック失敗をログに残して続行する。
func (s *PostService) Schedule(ctx context.Context, storeID, postID string, at time.Time, confirmed bool) (*model.Post, error) {
	existing, err := s.postsStore.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.StoreID != storeID {
		return nil, model.NewPostNotFoundError(postID)
	}
	if existing.Status == model.PostStatusPublished {
		return nil, model.NewAlreadyPublishedError(postID)
	}

	if !confirmed {
		raw, err := s.postsStore.CheckConflicts(ctx, storeID, postID, at)
		if err != nil {
			s.logger.Warn("公開予約前の衝突チェックに失敗しました",
				slog.String("store_id", storeID),
				slog.String("post_id", postID),
				slog.String("error", err.Error()),
			)
		} else if conflict.HasHighSeverity(conflict.Classify(raw, at)) {
			return nil, model.NewConfirmationRequiredError(at.Format("2006-01-02"))
		}
	}

	start := time.Now()
	scheduled, err := s.postsStore.Schedule(ctx, postID, at)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordScheduleLatency(time.Since(start))

	s.logger.Info("記事を公開予約しました",
		slog.String("store_id", storeID),
		slog.String("post_id", postID),
		slog.Time("scheduled_at", at),
	)
	return scheduled, nil
}
