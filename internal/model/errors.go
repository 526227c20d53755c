// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, plan, queue, schedule, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidTimeFormat    = "INVALID_TIME_FORMAT"
	ErrCodeInvalidWeekdaySet    = "INVALID_WEEKDAY_SET"
	ErrCodeBelowMinimum         = "PLAN_DAYS_BELOW_MINIMUM"
	ErrCodeExceedsMaximum       = "PLAN_DAYS_EXCEEDS_MAXIMUM"
	ErrCodePlanLimitViolation   = "PLAN_LIMIT_VIOLATION"
	ErrCodeQueueOrderConflict   = "QUEUE_ORDER_CONFLICT"
	ErrCodePostNotFound         = "POST_NOT_FOUND"
	ErrCodeStoreNotFound        = "STORE_NOT_FOUND"
	ErrCodeAlreadyPublished     = "ALREADY_PUBLISHED"
	ErrCodeSettingsForbidden    = "SETTINGS_FORBIDDEN"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeInvalidStatus        = "INVALID_STATUS"
	ErrCodeQueueBusy            = "QUEUE_BUSY"
	ErrCodeGeneratorFailed      = "GENERATOR_FAILED"
)

// NewInvalidTimeFormatError は公開時刻の書式エラーを生成する。
func NewInvalidTimeFormatError(timeOfDay string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimeFormat,
		Message:  fmt.Sprintf("無効な時刻形式です: %q", timeOfDay),
		Category: "validation",
		Action:   "公開時刻は24時間表記の HH:MM 形式で指定してください。",
	}
}

// NewInvalidWeekdaySetError は曜日集合の構造エラーを生成する。
// 曜日インデックスは0〜6（月曜=0）の整数でなければならない。
func NewInvalidWeekdaySetError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWeekdaySet,
		Message:  fmt.Sprintf("無効な曜日指定です: %s", reason),
		Category: "validation",
		Action:   "曜日は0（月曜）から6（日曜）の整数で重複なく指定してください。",
	}
}

// NewBelowMinimumError は選択曜日数がプラン下限を下回るエラーを生成する。
func NewBelowMinimumError(cfg PlanFrequencyConfig, selected int) *APIError {
	return &APIError{
		Code: ErrCodeBelowMinimum,
		Message: fmt.Sprintf("%sプランでは公開曜日を最低%d日選択する必要があります（現在%d日、上限%d日）。",
			cfg.DisplayName, cfg.MinDays, selected, cfg.MaxDays),
		Category: "plan",
		Action:   "公開曜日を追加で選択してください。",
	}
}

// NewExceedsMaximumError は選択曜日数がプラン上限を超えるエラーを生成する。
func NewExceedsMaximumError(cfg PlanFrequencyConfig, selected int) *APIError {
	return &APIError{
		Code: ErrCodeExceedsMaximum,
		Message: fmt.Sprintf("%sプランで選択できる公開曜日は最大%d日です（現在%d日、下限%d日）。",
			cfg.DisplayName, cfg.MaxDays, selected, cfg.MinDays),
		Category: "plan",
		Action:   "公開曜日の選択を減らしてください。",
	}
}

// NewPlanLimitViolationError はダウングレード後の設定がプラン上限を超えている
// 場合のエラーを生成する。読み込み時に安全なデフォルトへ置換された際、
// 置換が行われたことを呼び出し元へ通知するために使用する。
func NewPlanLimitViolationError(cfg PlanFrequencyConfig, stored int) *APIError {
	return &APIError{
		Code: ErrCodePlanLimitViolation,
		Message: fmt.Sprintf("保存済みの公開曜日数（%d日）が%sプランの上限（%d日）を超えているため、設定を調整しました。",
			stored, cfg.DisplayName, cfg.MaxDays),
		Category: "plan",
		Action:   "公開曜日の設定を確認して保存し直してください。",
	}
}

// NewQueueOrderConflictError はキュー並び替えの楽観的排他の失敗エラーを生成する。
func NewQueueOrderConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeQueueOrderConflict,
		Message:  "キューの並び順がサーバー側で変更されたため、並び替えを適用できませんでした。",
		Category: "queue",
		Action:   "最新のキューを確認してから再度並び替えてください。",
	}
}

// NewQueueBusyError はキュー操作の競合エラーを生成する。
// 並び替えの適用中に別の並び替えが要求された場合に返す。
func NewQueueBusyError() *APIError {
	return &APIError{
		Code:     ErrCodeQueueBusy,
		Message:  "キューへの別の操作が進行中です。",
		Category: "queue",
		Action:   "操作の完了を待ってから再度お試しください。",
	}
}

// NewPostNotFoundError は記事未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", postID),
		Category: "schedule",
		Action:   "記事IDを確認してください。",
	}
}

// NewStoreNotFoundError はストア未検出エラーを生成する。
func NewStoreNotFoundError(storeID string) *APIError {
	return &APIError{
		Code:     ErrCodeStoreNotFound,
		Message:  fmt.Sprintf("指定されたストアが見つかりません: %s", storeID),
		Category: "validation",
		Action:   "ストアIDを確認してください。",
	}
}

// NewAlreadyPublishedError は公開済み記事への予約操作エラーを生成する。
func NewAlreadyPublishedError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyPublished,
		Message:  fmt.Sprintf("記事は既に公開済みのため予約できません: %s", postID),
		Category: "schedule",
		Action:   "未公開の記事を選択してください。",
	}
}

// NewSettingsForbiddenError は現在のプランで許可されない設定の保存エラーを生成する。
func NewSettingsForbiddenError(cfg PlanFrequencyConfig, selected int) *APIError {
	return &APIError{
		Code: ErrCodeSettingsForbidden,
		Message: fmt.Sprintf("現在の%sプランでは%d日の公開曜日設定を保存できません（許可範囲: %d〜%d日）。",
			cfg.DisplayName, selected, cfg.MinDays, cfg.MaxDays),
		Category: "plan",
		Action:   "プランの範囲内に公開曜日を調整してください。",
	}
}

// NewConfirmationRequiredError は深刻な衝突があるコミットに確認が必要な
// ことを示すエラーを生成する。
func NewConfirmationRequiredError(dateKey string) *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  fmt.Sprintf("対象日（%s）に深刻なスケジュール衝突があります。", dateKey),
		Category: "schedule",
		Action:   "衝突内容を確認のうえ、確認フラグ付きで再実行してください。",
	}
}

// NewInvalidStatusError は無効なステータスフィルタエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには draft、queued、scheduled、published のいずれかを指定してください。",
	}
}

// NewGeneratorFailedError は記事生成APIの呼び出し失敗エラーを生成する。
func NewGeneratorFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeGeneratorFailed,
		Message:  fmt.Sprintf("記事生成APIの呼び出しに失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
