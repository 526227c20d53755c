// Package plan はサブスクリプションプランごとの公開頻度ポリシーを提供する。
// プラン名から頻度制限の解決、曜日選択のプラン制限バリデーション、
// 永続化用のFrequencySettings構築を行う。
package plan

import (
	"strings"

	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/schedule"
)

// fallbackPlanKey は未知・空のプラン名が解決される最も制限の厳しいティア。
const fallbackPlanKey = "starter"

// tiers は正規化済みプラン名をキーとする頻度制限テーブル。
// イミュータブルとして扱うこと。
var tiers = map[string]model.PlanFrequencyConfig{
	"starter": {ArticlesPerWeek: 3, MinDays: 1, MaxDays: 3, DisplayName: "Starter"},
	"growth":  {ArticlesPerWeek: 5, MinDays: 1, MaxDays: 5, DisplayName: "Growth"},
	"scale":   {ArticlesPerWeek: 7, MinDays: 1, MaxDays: 7, DisplayName: "Scale"},
}

// Normalize はプラン名を小文字化し、連続する空白をアンダースコアへ
// 置き換えた正規化キーを返す。
func Normalize(planName string) string {
	return strings.Join(strings.Fields(strings.ToLower(planName)), "_")
}

// ConfigFor はプラン名に対応する頻度制限を返す。
// 未知・空のプラン名は最も制限の厳しいStarterティアへフォールバックする。
// 文字列の純関数のためメモ化可能だが、正当性には不要。
func ConfigFor(planName string) model.PlanFrequencyConfig {
	if cfg, ok := tiers[Normalize(planName)]; ok {
		return cfg
	}
	return tiers[fallbackPlanKey]
}

// Validate は曜日選択がプランの制限内に収まっているかを検証する。
// 構造不正（0〜6以外・重複）はINVALID_WEEKDAY_SET、
// 選択数の不足・超過はプランのMin/Days・表示名を含むエラーを返す。
// nilが返れば有効。
func Validate(weekdays []int, planName string) error {
	if err := schedule.ValidateWeekdaySet(weekdays); err != nil {
		return err
	}

	cfg := ConfigFor(planName)
	if len(weekdays) < cfg.MinDays {
		return model.NewBelowMinimumError(cfg, len(weekdays))
	}
	if len(weekdays) > cfg.MaxDays {
		return model.NewExceedsMaximumError(cfg, len(weekdays))
	}
	return nil
}

// BuildSettings は永続化用のFrequencySettingsを構築する。
// 失敗するのは構造バリデーション（曜日集合の形式・時刻書式）のみで、
// プラン制限の超過では失敗しない。プラン制限は上流のUXゲートであり、
// ダウングレードにより保存済み設定が一時的に上限超過となるケースを
// 許容する必要があるため、永続化の前提条件にはしない。
func BuildSettings(planName string, weekdays []int, timeOfDay string) (model.FrequencySettings, error) {
	if err := schedule.ValidateWeekdaySet(weekdays); err != nil {
		return model.FrequencySettings{}, err
	}
	if len(weekdays) == 0 {
		return model.FrequencySettings{}, model.NewInvalidWeekdaySetError("曜日が1つも選択されていません")
	}
	if _, _, err := schedule.ParseTimeOfDay(timeOfDay); err != nil {
		return model.FrequencySettings{}, err
	}

	cfg := ConfigFor(planName)
	return model.FrequencySettings{
		IntervalKind:        model.IntervalKindWeekly,
		ArticlesPerInterval: cfg.ArticlesPerWeek,
		SelectedWeekdays:    schedule.NormalizeWeekdaySet(weekdays),
		TimeOfDay:           timeOfDay,
	}, nil
}

// SubstituteForDowngrade はダウングレード後のプラン上限に収まる安全な
// デフォルト（先頭からMaxDays日分の曜日）を返す。
// 設定読み込み時に上限超過を検出した場合の置換に使用する。
func SubstituteForDowngrade(weekdays []int, planName string) []int {
	cfg := ConfigFor(planName)
	normalized := schedule.NormalizeWeekdaySet(weekdays)
	if len(normalized) <= cfg.MaxDays {
		return normalized
	}
	return normalized[:cfg.MaxDays]
}
