// Package settings は定期公開設定の読み書きサービスを提供する。
// プランのダウングレードで保存済み設定が上限超過となった場合の
// 安全なデフォルトへの置換を含む。
package settings

import (
	"context"
	"log/slog"

	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/plan"
	"github.com/hitoshi/pubplan/internal/repository"
)

// SettingsService は定期公開設定の読み書きサービス。
type SettingsService struct {
	storeRepo     repository.StoreRepository
	settingsStore repository.SettingsStore
	logger        *slog.Logger
}

// NewSettingsService はSettingsServiceの新しいインスタンスを生成する。
func NewSettingsService(
	storeRepo repository.StoreRepository,
	settingsStore repository.SettingsStore,
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		storeRepo:     storeRepo,
		settingsStore: settingsStore,
		logger:        logger,
	}
}

// LoadResult はLoadの戻り値。保存済み設定が現在プランの上限を超えていた
// 場合、Warningに置換が行われたことを示すPLAN_LIMIT_VIOLATIONが入る。
type LoadResult struct {
	Settings *model.FrequencySettings
	Plan     model.PlanFrequencyConfig
	Warning  *model.APIError
}

// Load はストアの定期公開設定を現在プランの制限とあわせて返す。
// 保存済みの曜日数がプラン上限を超えている場合（ダウングレード後）、
// 上限に収まる安全なデフォルトへ置き換えたうえでWarningを添えて返す。
// 置換は読み込み時の表示用であり、保存データは書き換えない。
func (s *SettingsService) Load(ctx context.Context, storeID string) (*LoadResult, error) {
	store, err := s.storeRepo.FindByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, model.NewStoreNotFoundError(storeID)
	}

	cfg := plan.ConfigFor(store.PlanName)

	stored, err := s.settingsStore.Read(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return &LoadResult{Plan: cfg}, nil
	}

	result := &LoadResult{Settings: stored, Plan: cfg}
	if len(stored.SelectedWeekdays) > cfg.MaxDays {
		substituted := *stored
		substituted.SelectedWeekdays = plan.SubstituteForDowngrade(stored.SelectedWeekdays, store.PlanName)
		result.Settings = &substituted
		result.Warning = model.NewPlanLimitViolationError(cfg, len(stored.SelectedWeekdays))

		s.logger.Info("プラン上限超過の設定を安全なデフォルトへ置換しました",
			slog.String("store_id", storeID),
			slog.String("plan", store.PlanName),
			slog.Int("stored_days", len(stored.SelectedWeekdays)),
			slog.Int("max_days", cfg.MaxDays),
		)
	}

	return result, nil
}

// Save は定期公開設定を検証して保存する。
// 曜日集合の構造とプラン制限の両方を満たさない場合はエラーを返す。
func (s *SettingsService) Save(ctx context.Context, storeID string, weekdays []int, timeOfDay string) (*model.FrequencySettings, error) {
	store, err := s.storeRepo.FindByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, model.NewStoreNotFoundError(storeID)
	}

	if err := plan.Validate(weekdays, store.PlanName); err != nil {
		return nil, err
	}

	settings, err := plan.BuildSettings(store.PlanName, weekdays, timeOfDay)
	if err != nil {
		return nil, err
	}

	if err := s.settingsStore.Write(ctx, storeID, settings); err != nil {
		return nil, err
	}

	s.logger.Info("定期公開設定を保存しました",
		slog.String("store_id", storeID),
		slog.String("plan", store.PlanName),
		slog.Int("weekday_count", len(settings.SelectedWeekdays)),
		slog.String("time_of_day", settings.TimeOfDay),
	)
	return &settings, nil
}
