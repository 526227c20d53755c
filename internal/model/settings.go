// Package model はドメインモデルを定義する。
package model

// IntervalKind は定期公開の間隔種別を表す。現状はweeklyのみ。
type IntervalKind string

const (
	// IntervalKindWeekly は週次の定期公開を表す。
	IntervalKindWeekly IntervalKind = "weekly"
)

// FrequencySettings はストアごとの定期公開設定を表す。
// SelectedWeekdaysは内部規約（月曜=0〜日曜=6）のWeekdayIndexを昇順で保持する。
// 不変条件: len(SelectedWeekdays)はプランの[MinDays, MaxDays]の範囲内
// （ただしプランのダウングレード直後は一時的に超過し得る）。
type FrequencySettings struct {
	IntervalKind        IntervalKind
	ArticlesPerInterval int
	SelectedWeekdays    []int  // WeekdayIndex（月曜=0〜日曜=6）、昇順・重複なし
	TimeOfDay           string // "HH:MM" 24時間表記
}

// PlanFrequencyConfig はサブスクリプションプランごとの公開頻度制限を表す。
// 正規化済みプラン名をキーとするイミュータブルな設定。
type PlanFrequencyConfig struct {
	ArticlesPerWeek int
	MinDays         int
	MaxDays         int
	DisplayName     string
}
