package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pubplan/internal/model"
)

// defaultQueueTarget はqueue_targets未設定時の目標件数。
const defaultQueueTarget = 5

// Sanitizer は生成記事の本文HTMLをサニタイズするインターフェース。
type Sanitizer interface {
	Sanitize(html string) string
}

// PostgresQueueStore はPostgreSQLを使用したキューストア。
// 並び順の正はposts.queue_positionであり、並び替えはトランザクション内で
// 行ロックを取ってから適用する。
type PostgresQueueStore struct {
	db        *sql.DB
	generator ArticleGenerator
	sanitizer Sanitizer
}

// NewPostgresQueueStore はPostgresQueueStoreを生成する。
func NewPostgresQueueStore(db *sql.DB, generator ArticleGenerator, sanitizer Sanitizer) *PostgresQueueStore {
	return &PostgresQueueStore{db: db, generator: generator, sanitizer: sanitizer}
}

// Fetch はストアのキューを現在のサーバー順で返す。
func (s *PostgresQueueStore) Fetch(ctx context.Context, storeID string) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, store_id, title, body, status, queue_position,
		        scheduled_at, published_at, created_at, updated_at
		 FROM posts
		 WHERE store_id = $1 AND status = 'queued'
		 ORDER BY queue_position ASC`,
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("キューの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows, "キュー")
}

// Reorder はキューを指定のID順へ並び替え、確定後の順序を返す。
// サーバー側の現在構成と指定順の構成（件数・ID集合）が食い違っている場合は
// QUEUE_ORDER_CONFLICTエラーを返し、順序は変更しない。
func (s *PostgresQueueStore) Reorder(ctx context.Context, storeID string, orderedIDs []string) ([]model.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("並び替えトランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM posts
		 WHERE store_id = $1 AND status = 'queued'
		 ORDER BY queue_position ASC
		 FOR UPDATE`,
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("キューの行ロック取得に失敗しました: %w", err)
	}

	current := map[string]struct{}{}
	currentCount := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("キューIDの読み取りに失敗しました: %w", err)
		}
		current[id] = struct{}{}
		currentCount++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("キューIDの走査に失敗しました: %w", err)
	}
	rows.Close()

	// ID集合の一致確認。件数または構成が違えば並び順が変わっている。
	if len(orderedIDs) != currentCount {
		return nil, model.NewQueueOrderConflictError()
	}
	for _, id := range orderedIDs {
		if _, ok := current[id]; !ok {
			return nil, model.NewQueueOrderConflictError()
		}
		delete(current, id)
	}

	for pos, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET queue_position = $3, updated_at = now()
			 WHERE id = $2 AND store_id = $1`,
			storeID, id, pos,
		); err != nil {
			return nil, fmt.Errorf("キュー位置の更新に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("並び替えトランザクションのコミットに失敗しました: %w", err)
	}

	return s.Fetch(ctx, storeID)
}

// RegenerateTitle は上流ジェネレータで記事タイトルを再生成し、更新後の記事を返す。
func (s *PostgresQueueStore) RegenerateTitle(ctx context.Context, storeID, postID string) (*model.Post, error) {
	post, err := s.findQueuedPost(ctx, storeID, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	title, err := s.generator.RegenerateTitle(ctx, post.Title, post.Body)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE posts SET title = $3, updated_at = $4 WHERE id = $2 AND store_id = $1`,
		storeID, postID, title, now,
	); err != nil {
		return nil, fmt.Errorf("記事タイトルの更新に失敗しました: %w", err)
	}

	post.Title = title
	post.UpdatedAt = now
	return post, nil
}

// Refill は目標件数に達するまでキューへ記事を補充する。
// 既に目標を満たしている場合は何もせず0件を返す。
func (s *PostgresQueueStore) Refill(ctx context.Context, storeID string) (*model.RefillResult, error) {
	metrics, err := s.Metrics(ctx, storeID)
	if err != nil {
		return nil, err
	}

	needed := metrics.TargetCount - metrics.CurrentCount
	if needed <= 0 {
		return &model.RefillResult{}, nil
	}

	articles, err := s.generator.RequestArticles(ctx, storeID, needed)
	if err != nil {
		return nil, err
	}

	var maxPos sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(queue_position) FROM posts WHERE store_id = $1 AND status = 'queued'`,
		storeID,
	).Scan(&maxPos); err != nil {
		return nil, fmt.Errorf("キュー末尾位置の取得に失敗しました: %w", err)
	}

	pos := 0
	if maxPos.Valid {
		pos = int(maxPos.Int64) + 1
	}

	now := time.Now()
	created := 0
	for _, a := range articles {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO posts (id, store_id, title, body, status, queue_position, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, 'queued', $5, $6, $6)`,
			uuid.New().String(), storeID, a.Title, s.sanitizer.Sanitize(a.Body), pos, now,
		); err != nil {
			return nil, fmt.Errorf("補充記事の保存に失敗しました: %w", err)
		}
		pos++
		created++
	}

	return &model.RefillResult{CreatedCount: created}, nil
}

// Metrics はキューの充足状況を返す。queue_targetsに行が無いストアは
// デフォルトの目標件数を使う。
func (s *PostgresQueueStore) Metrics(ctx context.Context, storeID string) (*model.QueueMetrics, error) {
	var target int
	err := s.db.QueryRowContext(ctx,
		`SELECT target_count FROM queue_targets WHERE store_id = $1`,
		storeID,
	).Scan(&target)
	if err == sql.ErrNoRows {
		target = defaultQueueTarget
	} else if err != nil {
		return nil, fmt.Errorf("キュー目標件数の取得に失敗しました: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE store_id = $1 AND status = 'queued'`,
		storeID,
	).Scan(&current); err != nil {
		return nil, fmt.Errorf("キュー件数の取得に失敗しました: %w", err)
	}

	return &model.QueueMetrics{
		TargetCount:  target,
		CurrentCount: current,
		NeedsRefill:  current < target,
	}, nil
}

// findQueuedPost はキュー内の記事を1件取得する。見つからない場合はnilを返す。
func (s *PostgresQueueStore) findQueuedPost(ctx context.Context, storeID, postID string) (*model.Post, error) {
	post := &model.Post{}
	var scheduledAt, publishedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, store_id, title, body, status, queue_position,
		        scheduled_at, published_at, created_at, updated_at
		 FROM posts
		 WHERE id = $2 AND store_id = $1 AND status = 'queued'`,
		storeID, postID,
	).Scan(
		&post.ID, &post.StoreID, &post.Title, &post.Body,
		&post.Status, &post.QueuePosition,
		&scheduledAt, &publishedAt, &post.CreatedAt, &post.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キュー記事の取得に失敗しました: %w", err)
	}

	post.ScheduledAt = nullTimeValue(scheduledAt)
	post.PublishedAt = nullTimeValue(publishedAt)
	return post, nil
}

// scanPosts は記事行を走査してスライスへ変換する。labelはエラー文言用。
func scanPosts(rows *sql.Rows, label string) ([]model.Post, error) {
	var posts []model.Post
	for rows.Next() {
		var post model.Post
		var scheduledAt, publishedAt sql.NullTime

		if err := rows.Scan(
			&post.ID, &post.StoreID, &post.Title, &post.Body,
			&post.Status, &post.QueuePosition,
			&scheduledAt, &publishedAt, &post.CreatedAt, &post.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%sの記事の読み取りに失敗しました: %w", label, err)
		}

		post.ScheduledAt = nullTimeValue(scheduledAt)
		post.PublishedAt = nullTimeValue(publishedAt)
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの記事の走査に失敗しました: %w", label, err)
	}

	return posts, nil
}

// nullTimeValue はsql.NullTimeから*time.Timeを取得する。
func nullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// compile-time interface check
var _ QueueStore = (*PostgresQueueStore)(nil)
