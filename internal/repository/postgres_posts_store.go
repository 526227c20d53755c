package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
)

// conflictWindow は衝突チェックで既存コミットメントを探す時間幅。
const conflictWindow = 24 * time.Hour

// PostgresPostsStore はPostgreSQLを使用した記事ストア。
type PostgresPostsStore struct {
	db *sql.DB
}

// NewPostgresPostsStore はPostgresPostsStoreを生成する。
func NewPostgresPostsStore(db *sql.DB) *PostgresPostsStore {
	return &PostgresPostsStore{db: db}
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (s *PostgresPostsStore) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	var scheduledAt, publishedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, store_id, title, body, status, queue_position,
		        scheduled_at, published_at, created_at, updated_at
		 FROM posts WHERE id = $1`,
		id,
	).Scan(
		&post.ID, &post.StoreID, &post.Title, &post.Body,
		&post.Status, &post.QueuePosition,
		&scheduledAt, &publishedAt, &post.CreatedAt, &post.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	post.ScheduledAt = nullTimeValue(scheduledAt)
	post.PublishedAt = nullTimeValue(publishedAt)
	return post, nil
}

// ListByStatus はストアの記事を指定ステータスで絞り込んで返す。
// scheduledは予約日時の昇順、publishedは公開日時の降順、
// それ以外は作成日時の降順で返す。
func (s *PostgresPostsStore) ListByStatus(ctx context.Context, storeID string, status model.PostStatus) ([]model.Post, error) {
	var orderBy string
	switch status {
	case model.PostStatusScheduled:
		orderBy = "scheduled_at ASC"
	case model.PostStatusPublished:
		orderBy = "published_at DESC"
	case model.PostStatusQueued:
		orderBy = "queue_position ASC"
	default:
		orderBy = "created_at DESC"
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(
			`SELECT id, store_id, title, body, status, queue_position,
			        scheduled_at, published_at, created_at, updated_at
			 FROM posts
			 WHERE store_id = $1 AND status = $2
			 ORDER BY %s, id ASC`, orderBy),
		storeID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows, "記事一覧")
}

// Schedule は記事を指定日時で公開予約する。
// 公開済みの場合はALREADY_PUBLISHED、存在しない場合はPOST_NOT_FOUNDを返す。
func (s *PostgresPostsStore) Schedule(ctx context.Context, postID string, at time.Time) (*model.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("予約トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM posts WHERE id = $1 FOR UPDATE`,
		postID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, model.NewPostNotFoundError(postID)
	}
	if err != nil {
		return nil, fmt.Errorf("記事ステータスの取得に失敗しました: %w", err)
	}
	if status == string(model.PostStatusPublished) {
		return nil, model.NewAlreadyPublishedError(postID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET status = 'scheduled', scheduled_at = $2, updated_at = now()
		 WHERE id = $1`,
		postID, at,
	); err != nil {
		return nil, fmt.Errorf("公開予約の保存に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("予約トランザクションのコミットに失敗しました: %w", err)
	}

	return s.FindByID(ctx, postID)
}

// CheckConflicts は候補日時の前後24時間に実効タイムスタンプを持つ
// 既存コミットメントを未分類のまま返す。対象記事自身は除外する。
// 優先度は同時刻=high、同一暦日=medium、それ以外=lowで付与する。
// 深刻度への最終分類はConflictAdvisorの責務。
func (s *PostgresPostsStore) CheckConflicts(ctx context.Context, storeID, postID string, at time.Time) ([]model.RawConflict, error) {
	from := at.Add(-conflictWindow)
	to := at.Add(conflictWindow)

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, COALESCE(published_at, scheduled_at)
		 FROM posts
		 WHERE store_id = $1
		   AND id <> $2
		   AND COALESCE(published_at, scheduled_at) BETWEEN $3 AND $4`,
		storeID, postID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("衝突チェックの問い合わせに失敗しました: %w", err)
	}
	defer rows.Close()

	var conflicts []model.RawConflict
	for rows.Next() {
		var title string
		var occursAt time.Time
		if err := rows.Scan(&title, &occursAt); err != nil {
			return nil, fmt.Errorf("衝突エントリの読み取りに失敗しました: %w", err)
		}
		conflicts = append(conflicts, model.RawConflict{
			Priority:    conflictPriority(at, occursAt),
			Description: title,
			OccursAt:    occursAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("衝突エントリの走査に失敗しました: %w", err)
	}

	return conflicts, nil
}

// conflictPriority は候補日時と既存コミットメントの近さから優先度を決める。
func conflictPriority(at, occursAt time.Time) string {
	if at.Equal(occursAt) {
		return "high"
	}
	ay, am, ad := at.Date()
	oy, om, od := occursAt.In(at.Location()).Date()
	if ay == oy && am == om && ad == od {
		return "medium"
	}
	return "low"
}

// compile-time interface check
var _ PostsStore = (*PostgresPostsStore)(nil)
