// Package model はドメインモデルを定義する。
package model

import "time"

// Store はコンテンツ公開先のテナント（ストア）を表す。
// PlanNameが公開頻度の制限を決め、InstalledAtがカレンダーの
// ナビゲーション下限（導入月の初日）の基準となる。
type Store struct {
	ID          string
	Name        string
	PlanName    string
	InstalledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GeneratedArticle は上流の記事生成パイプラインが返す未保存の記事を表す。
// 生成パイプライン自体は本エンジンの管轄外で、不透明なプロデューサーとして
// 扱う。BodyはサニタイズされていないHTML。
type GeneratedArticle struct {
	Title string
	Body  string
}
