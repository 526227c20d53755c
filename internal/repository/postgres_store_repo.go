package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/pubplan/internal/model"
)

// PostgresStoreRepo はPostgreSQLを使用したストアリポジトリ。
type PostgresStoreRepo struct {
	db *sql.DB
}

// NewPostgresStoreRepo はPostgresStoreRepoを生成する。
func NewPostgresStoreRepo(db *sql.DB) *PostgresStoreRepo {
	return &PostgresStoreRepo{db: db}
}

// FindByID は指定IDのストアを取得する。見つからない場合はnilを返す。
func (r *PostgresStoreRepo) FindByID(ctx context.Context, id string) (*model.Store, error) {
	store := &model.Store{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, plan_name, installed_at, created_at, updated_at
		 FROM stores WHERE id = $1`,
		id,
	).Scan(
		&store.ID, &store.Name, &store.PlanName,
		&store.InstalledAt, &store.CreatedAt, &store.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ストアの取得に失敗しました: %w", err)
	}

	return store, nil
}

// ListIDs は全ストアIDを返す。補充ポーラーの巡回対象列挙に使用する。
func (r *PostgresStoreRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM stores ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ストアID一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ストアIDの読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ストアID一覧の走査に失敗しました: %w", err)
	}

	return ids, nil
}

// compile-time interface check
var _ StoreRepository = (*PostgresStoreRepo)(nil)
