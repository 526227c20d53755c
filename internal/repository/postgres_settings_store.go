package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/plan"
)

// PostgresSettingsStore はPostgreSQLを使用した定期公開設定ストア。
type PostgresSettingsStore struct {
	db *sql.DB
}

// NewPostgresSettingsStore はPostgresSettingsStoreを生成する。
func NewPostgresSettingsStore(db *sql.DB) *PostgresSettingsStore {
	return &PostgresSettingsStore{db: db}
}

// Read はストアの定期公開設定を取得する。未設定の場合はnilを返す。
func (s *PostgresSettingsStore) Read(ctx context.Context, storeID string) (*model.FrequencySettings, error) {
	settings := &model.FrequencySettings{}
	var weekdays pq.Int64Array

	err := s.db.QueryRowContext(ctx,
		`SELECT interval_kind, articles_per_interval, selected_weekdays, time_of_day
		 FROM publish_settings WHERE store_id = $1`,
		storeID,
	).Scan(
		&settings.IntervalKind, &settings.ArticlesPerInterval,
		&weekdays, &settings.TimeOfDay,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("定期公開設定の取得に失敗しました: %w", err)
	}

	settings.SelectedWeekdays = make([]int, 0, len(weekdays))
	for _, w := range weekdays {
		settings.SelectedWeekdays = append(settings.SelectedWeekdays, int(w))
	}

	return settings, nil
}

// Write はストアの定期公開設定を保存する。
// 保存直前にストアの現在プランで曜日数を再確認し、許可範囲外の場合は
// SETTINGS_FORBIDDENを返す。呼び出し元のバリデーションをすり抜けた
// 不正リクエストに対する最終防衛線。
func (s *PostgresSettingsStore) Write(ctx context.Context, storeID string, settings model.FrequencySettings) error {
	var planName string
	err := s.db.QueryRowContext(ctx,
		`SELECT plan_name FROM stores WHERE id = $1`,
		storeID,
	).Scan(&planName)
	if err == sql.ErrNoRows {
		return fmt.Errorf("設定対象のストアが見つかりません: %s", storeID)
	}
	if err != nil {
		return fmt.Errorf("ストアのプラン取得に失敗しました: %w", err)
	}

	cfg := plan.ConfigFor(planName)
	selected := len(settings.SelectedWeekdays)
	if selected < cfg.MinDays || selected > cfg.MaxDays {
		return model.NewSettingsForbiddenError(cfg, selected)
	}

	weekdays := make(pq.Int64Array, 0, selected)
	for _, w := range settings.SelectedWeekdays {
		weekdays = append(weekdays, int64(w))
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO publish_settings (store_id, interval_kind, articles_per_interval, selected_weekdays, time_of_day, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (store_id) DO UPDATE SET
		    interval_kind = EXCLUDED.interval_kind,
		    articles_per_interval = EXCLUDED.articles_per_interval,
		    selected_weekdays = EXCLUDED.selected_weekdays,
		    time_of_day = EXCLUDED.time_of_day,
		    updated_at = now()`,
		storeID, string(settings.IntervalKind), settings.ArticlesPerInterval,
		weekdays, settings.TimeOfDay,
	); err != nil {
		return fmt.Errorf("定期公開設定の保存に失敗しました: %w", err)
	}

	return nil
}

// compile-time interface check
var _ SettingsStore = (*PostgresSettingsStore)(nil)
