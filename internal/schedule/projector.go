package schedule

import (
	"time"
)

// maxProjectionAttempts は候補日走査の打ち切り上限（日数）。
// occupiedが異常に密な場合でも走査が有限で終わることを保証する。
// 上限到達で件数が満たないのはエラーではなく、短い結果をそのまま返す。
const maxProjectionAttempts = 200

// ProjectionInput はプロジェクタへの入力をまとめた構造体。
// Nowを固定すれば出力は完全に決定的となる（テストはこれを利用する）。
type ProjectionInput struct {
	SelectedWeekdays []int               // 内部曜日インデックス（月曜=0〜日曜=6）
	TimeOfDay        string              // "HH:MM" 24時間表記
	Count            int                 // 要求件数（0以下なら空）
	Occupied         map[string]struct{} // 既に埋まっているスロット（OccupiedKey形式）
	Now              time.Time
}

// OccupiedKey はoccupied集合のキー表現（RFC3339）を返す。
// プロジェクタの除外判定と呼び出し元の集合構築で同じ表現を使うこと。
func OccupiedKey(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Project は曜日パターンと公開時刻から将来の公開日時をCount件まで導出する。
// 結果は狭義単調増加で、各要素の曜日は選択集合に含まれ、occupiedに
// 含まれるスロットは飛ばされる。
//
// 候補の起点は「今日のTimeOfDay」。その時刻がNow以前（同時刻を含む）の場合は
// 翌日から走査を始める（「今この瞬間」を返すことはない）。
// 候補は24時間加算ではなく暦日単位で進めるため、夏時間の切り替えを跨いでも
// 公開時刻はずれない。
func Project(in ProjectionInput) ([]time.Time, error) {
	if len(in.SelectedWeekdays) == 0 || in.Count <= 0 {
		return nil, nil
	}

	if err := ValidateWeekdaySet(in.SelectedWeekdays); err != nil {
		return nil, err
	}

	hour, minute, err := ParseTimeOfDay(in.TimeOfDay)
	if err != nil {
		return nil, err
	}

	native := make(map[time.Weekday]bool, len(in.SelectedWeekdays))
	for _, d := range in.SelectedWeekdays {
		native[ToNative(d)] = true
	}

	loc := in.Now.Location()
	year, month, day := in.Now.Date()
	candidate := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if !candidate.After(in.Now) {
		candidate = nextCalendarDay(candidate, hour, minute)
	}

	result := make([]time.Time, 0, in.Count)
	for attempts := 0; attempts < maxProjectionAttempts && len(result) < in.Count; attempts++ {
		if native[candidate.Weekday()] {
			if _, taken := in.Occupied[OccupiedKey(candidate)]; !taken {
				result = append(result, candidate)
			}
		}
		candidate = nextCalendarDay(candidate, hour, minute)
	}

	return result, nil
}

// nextCalendarDay は翌暦日の同時刻を返す。
// time.Dateで再構築することで、夏時間により1日が23/25時間になる日でも
// 壁時計上の公開時刻を維持する。
func nextCalendarDay(t time.Time, hour, minute int) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day+1, hour, minute, 0, 0, t.Location())
}
