// Package calendar はタイムスタンプ付き記事のカレンダービューへの集約を提供する。
// 月グリッド・週ストリップ・フラットリストの3ビューを、イミュータブルな
// スナップショットに対する純関数として構築する。ビューは描画のたびに
// 再計算される派生データであり、永続化されない。
package calendar

import (
	"sort"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/schedule"
)

// monthGridCells は月グリッドのセル数（6週×7曜日）。
const monthGridCells = 42

// dateKeyLayout は日付キーのフォーマット。
const dateKeyLayout = "2006-01-02"

// TimedItem は集約対象の記事と、queuedの場合に割り当てられた投影日時の組。
// 実効タイムスタンプはPublishedAt > ScheduledAt > Projectionの優先順位で決まり、
// いずれも無い記事はすべてのビューから除外される。
type TimedItem struct {
	Post       model.Post
	Projection *time.Time
}

// Entry は実効タイムスタンプが確定した記事を表す。
type Entry struct {
	Post model.Post
	At   time.Time
}

// Day は月グリッドの1セルを表す。
type Day struct {
	Date    time.Time // そのセルのローカル日付の00:00
	DateKey string
	InMonth bool // 対象月に属するセルか（前後月の埋めセルはfalse）
	IsToday bool
	Entries []Entry // 実効タイムスタンプ昇順
}

// WeekSlot は週ストリップの1日分を表す。
type WeekSlot struct {
	Date    time.Time
	DateKey string
	IsToday bool
	Entries []Entry
}

// DateKey は日付キー（"2006-01-02"）を返す。
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// MonthGrid は対象月の42セル（月曜始まりの6週×7日）を日付昇順で返す。
// 前月末・翌月頭の埋めセルを含むが、minDateより厳密に前、またはmaxDateより
// 厳密に後の日付のセルは除外される（ナビゲーション境界では42未満になる）。
// minDate/maxDateの妥当性検証は呼び出し元の責務であり、ここでは行わない。
func MonthGrid(year int, month time.Month, items []TimedItem, minDate, maxDate *time.Time, now time.Time) []Day {
	loc := now.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)

	// 月初を含む週の月曜日までグリッドの起点を戻す
	offset := schedule.FromNative(first.Weekday())
	byDay := bucketByDate(items)
	todayKey := DateKey(now)

	days := make([]Day, 0, monthGridCells)
	for i := 0; i < monthGridCells; i++ {
		date := time.Date(year, month, 1-offset+i, 0, 0, 0, 0, loc)
		if minDate != nil && beforeDate(date, *minDate) {
			continue
		}
		if maxDate != nil && beforeDate(*maxDate, date) {
			continue
		}
		key := DateKey(date)
		days = append(days, Day{
			Date:    date,
			DateKey: key,
			InMonth: date.Month() == month,
			IsToday: key == todayKey,
			Entries: byDay[key],
		})
	}
	return days
}

// WeekStrip はweekStartから始まる7日分のスロットを返す。
// weekStartは内部規約（月曜始まり）で正規化済みであることを前提とし、
// 境界による間引きは行わず常に7件を返す。
func WeekStrip(weekStart time.Time, items []TimedItem, now time.Time) []WeekSlot {
	loc := weekStart.Location()
	year, month, day := weekStart.Date()
	byDay := bucketByDate(items)
	todayKey := DateKey(now)

	slots := make([]WeekSlot, 0, 7)
	for i := 0; i < 7; i++ {
		date := time.Date(year, month, day+i, 0, 0, 0, 0, loc)
		key := DateKey(date)
		slots = append(slots, WeekSlot{
			Date:    date,
			DateKey: key,
			IsToday: key == todayKey,
			Entries: byDay[key],
		})
	}
	return slots
}

// FlatList は実効タイムスタンプを持つ全記事を新しい順（降順）で返す。
// 公開履歴のレビュー用。
func FlatList(items []TimedItem) []Entry {
	entries := collect(items)
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.After(entries[j].At)
		}
		return entries[i].Post.ID < entries[j].Post.ID
	})
	return entries
}

// collect は実効タイムスタンプを持つ記事のみをEntryへ変換する。
func collect(items []TimedItem) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		at := it.Post.EffectiveTimestamp(it.Projection)
		if at == nil {
			continue
		}
		entries = append(entries, Entry{Post: it.Post, At: *at})
	}
	return entries
}

// bucketByDate は記事をローカル日付（[00:00, 24:00)の窓）ごとに振り分け、
// 各日付内を実効タイムスタンプ昇順に整列する。
func bucketByDate(items []TimedItem) map[string][]Entry {
	byDay := make(map[string][]Entry)
	for _, e := range collect(items) {
		key := DateKey(e.At)
		byDay[key] = append(byDay[key], e)
	}
	for key := range byDay {
		entries := byDay[key]
		sort.Slice(entries, func(i, j int) bool {
			if !entries[i].At.Equal(entries[j].At) {
				return entries[i].At.Before(entries[j].At)
			}
			return entries[i].Post.ID < entries[j].Post.ID
		})
		byDay[key] = entries
	}
	return byDay
}

// beforeDate はaの日付がbの日付より厳密に前かを日単位で判定する。
func beforeDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
