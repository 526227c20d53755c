// Package model はドメインモデルを定義する。
package model

import "time"

// ConflictSeverity はスケジュール衝突の深刻度を表す。
// highのみがコミット時のユーザー確認を必須とする。
type ConflictSeverity string

const (
	// ConflictSeverityHigh は再スケジュールを推奨する深刻な衝突。
	ConflictSeverityHigh ConflictSeverity = "high"
	// ConflictSeverityMedium は確認を推奨する衝突。
	ConflictSeverityMedium ConflictSeverity = "medium"
	// ConflictSeverityLow は軽微な衝突。
	ConflictSeverityLow ConflictSeverity = "low"
)

// ConflictRecord は特定の候補日に対する衝突判定の結果を表す。
// スケジューリングモーダルのセッションが所有する一時データであり、
// セッション終了または対象日の変更でクリアされる。
type ConflictRecord struct {
	TargetDateKey string // ISO日付文字列（"2006-01-02"）
	Severity      ConflictSeverity
	Message       string
}

// RawConflict は外部チェッカーが返す未分類の衝突エントリを表す。
// PriorityはチェッカーのHTTP応答そのままの文字列で、
// ConflictAdvisorが深刻度へ変換する。
type RawConflict struct {
	Priority    string
	Description string
	OccursAt    time.Time
}
