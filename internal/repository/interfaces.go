// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
)

// StoreRepository はストア（テナント）データの永続化インターフェース。
type StoreRepository interface {
	// FindByID は指定IDのストアを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Store, error)

	// ListIDs は全ストアIDを返す。補充ポーラーの巡回対象列挙に使用する。
	ListIDs(ctx context.Context) ([]string, error)
}

// QueueStore はサーバーが所有するキュー順序への操作インターフェース。
// 並び順の正はサーバー側にあり、クライアント（リコンサイラ）はミラーを保持する。
type QueueStore interface {
	// Fetch はストアのキューを現在のサーバー順で返す。
	Fetch(ctx context.Context, storeID string) ([]model.Post, error)

	// Reorder はキューを指定のID順へ並び替え、確定後の順序を返す。
	// サーバー側の現在順と指定順の構成が食い違っている場合は
	// QUEUE_ORDER_CONFLICTエラーを返す。
	Reorder(ctx context.Context, storeID string, orderedIDs []string) ([]model.Post, error)

	// RegenerateTitle は上流ジェネレータで記事タイトルを再生成し、
	// 更新後の記事を返す。
	RegenerateTitle(ctx context.Context, storeID, postID string) (*model.Post, error)

	// Refill はサーバーが宣言する目標件数までキューを補充する。
	Refill(ctx context.Context, storeID string) (*model.RefillResult, error)

	// Metrics はキューの充足状況（目標件数・現在件数・要補充フラグ）を返す。
	Metrics(ctx context.Context, storeID string) (*model.QueueMetrics, error)
}

// PostsStore は記事データの永続化インターフェース。
type PostsStore interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// ListByStatus はストアの記事を指定ステータスで絞り込んで返す。
	// scheduledはscheduled_at昇順、publishedはpublished_at降順で返す。
	ListByStatus(ctx context.Context, storeID string, status model.PostStatus) ([]model.Post, error)

	// Schedule は記事を指定日時で公開予約する。
	// 公開済みの場合はALREADY_PUBLISHED、存在しない場合はPOST_NOT_FOUNDを返す。
	Schedule(ctx context.Context, postID string, at time.Time) (*model.Post, error)

	// CheckConflicts は候補日時と重なる既存コミットメントを未分類のまま返す。
	// 深刻度への分類はConflictAdvisorの責務。
	CheckConflicts(ctx context.Context, storeID, postID string, at time.Time) ([]model.RawConflict, error)
}

// SettingsStore は定期公開設定の永続化インターフェース。
type SettingsStore interface {
	// Read はストアの定期公開設定を取得する。未設定の場合はnilを返す。
	Read(ctx context.Context, storeID string) (*model.FrequencySettings, error)

	// Write はストアの定期公開設定を保存する。
	// 現在のプランが設定の曜日数を許可しない場合はSETTINGS_FORBIDDENを返す
	// （呼び出し元は保存前に再バリデーションすること。これは最終防衛線）。
	Write(ctx context.Context, storeID string, settings model.FrequencySettings) error
}

// ArticleGenerator は上流の記事生成パイプラインへのインターフェース。
// キュー補充とタイトル再生成が利用する。生成の中身は不透明。
type ArticleGenerator interface {
	// RequestArticles は指定件数の記事生成を依頼する。
	RequestArticles(ctx context.Context, storeID string, count int) ([]model.GeneratedArticle, error)

	// RegenerateTitle は既存記事の本文をもとに新しいタイトルを生成する。
	RegenerateTitle(ctx context.Context, title, body string) (string, error)
}
