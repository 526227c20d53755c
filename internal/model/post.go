// Package model はドメインモデルを定義する。
package model

import "time"

// Post はストアに属する記事を表す。
// ステータスに応じてタイムスタンプの持ち方が変わる:
// queuedは自身のタイムスタンプを持たず（表示用の投影は都度計算される）、
// scheduledはScheduledAt、publishedはPublishedAtを持つ。
type Post struct {
	ID            string
	StoreID       string
	Title         string
	Body          string // サニタイズ済みHTML
	Status        PostStatus
	QueuePosition int // queuedの場合のみ有効（0始まり）
	ScheduledAt   *time.Time
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PostStatus は記事のライフサイクル状態を表す。
// draft → scheduled → published、または queued → scheduled → published。
type PostStatus string

const (
	// PostStatusDraft は下書き状態。
	PostStatusDraft PostStatus = "draft"
	// PostStatusQueued は生成キューに積まれた状態。
	PostStatusQueued PostStatus = "queued"
	// PostStatusScheduled は公開予約済みの状態。
	PostStatusScheduled PostStatus = "scheduled"
	// PostStatusPublished は公開済みの状態。公開ジョブは本エンジンの管轄外。
	PostStatusPublished PostStatus = "published"
)

// EffectiveTimestamp は表示用の実効タイムスタンプを返す。
// 優先順位: PublishedAt > ScheduledAt > projection（呼び出し元が渡す投影値）。
// いずれも無い場合はnilを返し、その記事はカレンダーから除外される。
func (p *Post) EffectiveTimestamp(projection *time.Time) *time.Time {
	if p.PublishedAt != nil {
		return p.PublishedAt
	}
	if p.ScheduledAt != nil {
		return p.ScheduledAt
	}
	return projection
}

// QueueMetrics はサーバーが報告するキューの充足状況を表す。
// 自動補充判定の入力となる。
type QueueMetrics struct {
	TargetCount  int
	CurrentCount int
	NeedsRefill  bool
}

// RefillResult はキュー補充の結果を表す。
type RefillResult struct {
	CreatedCount int
}
