package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
)

// 2026-09-01は火曜日。
var projectorNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func TestProject_月水金パターンで次の3件が導出される(t *testing.T) {
	got, err := Project(ProjectionInput{
		SelectedWeekdays: []int{0, 2, 4}, // 月・水・金
		TimeOfDay:        "14:00",
		Count:            3,
		Now:              projectorNow,
	})
	if err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}

	want := []time.Time{
		time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC), // 水
		time.Date(2026, 9, 4, 14, 0, 0, 0, time.UTC), // 金
		time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC), // 翌週月
	}
	if len(got) != len(want) {
		t.Fatalf("件数が一致しません: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("result[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestProject_当日の時刻を過ぎていれば翌日から走査する(t *testing.T) {
	// 火曜15:00時点で火曜14:00を要求すると、翌週火曜が最初の候補になる
	now := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	got, err := Project(ProjectionInput{
		SelectedWeekdays: []int{1}, // 火
		TimeOfDay:        "14:00",
		Count:            1,
		Now:              now,
	})
	if err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}
	want := time.Date(2026, 9, 8, 14, 0, 0, 0, time.UTC)
	if len(got) != 1 || !got[0].Equal(want) {
		t.Errorf("result = %v, want [%v]", got, want)
	}
}

func TestProject_現在時刻と同時刻の候補は含まれない(t *testing.T) {
	now := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	got, err := Project(ProjectionInput{
		SelectedWeekdays: []int{1},
		TimeOfDay:        "14:00",
		Count:            1,
		Now:              now,
	})
	if err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}
	if len(got) != 1 || got[0].Equal(now) {
		t.Errorf("「今この瞬間」が候補に含まれています: %v", got)
	}
}

func TestProject_occupiedのスロットは飛ばされる(t *testing.T) {
	occupied := map[string]struct{}{
		OccupiedKey(time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC)): {},
	}
	got, err := Project(ProjectionInput{
		SelectedWeekdays: []int{0, 2, 4},
		TimeOfDay:        "14:00",
		Count:            3,
		Occupied:         occupied,
		Now:              projectorNow,
	})
	if err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}

	want := []time.Time{
		time.Date(2026, 9, 4, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 9, 14, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("件数が一致しません: got %v", got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("result[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestProject_空の曜日集合はエラーなく空を返す(t *testing.T) {
	got, err := Project(ProjectionInput{
		SelectedWeekdays: nil,
		TimeOfDay:        "14:00",
		Count:            3,
		Now:              projectorNow,
	})
	if err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("空であるべき結果に要素があります: %v", got)
	}
}

func TestProject_件数0以下はエラーなく空を返す(t *testing.T) {
	got, err := Project(ProjectionInput{
		SelectedWeekdays: []int{0},
		TimeOfDay:        "14:00",
		Count:            0,
		Now:              projectorNow,
	})
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, err %v", got, err)
	}
}

func TestProject_不正な曜日集合はエラーを返す(t *testing.T) {
	_, err := Project(ProjectionInput{
		SelectedWeekdays: []int{0, 9},
		TimeOfDay:        "14:00",
		Count:            1,
		Now:              projectorNow,
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidWeekdaySet {
		t.Errorf("INVALID_WEEKDAY_SETが返されていません: %v", err)
	}
}

func TestProject_不正な時刻書式はエラーを返す(t *testing.T) {
	_, err := Project(ProjectionInput{
		SelectedWeekdays: []int{0},
		TimeOfDay:        "9:00",
		Count:            1,
		Now:              projectorNow,
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidTimeFormat {
		t.Errorf("INVALID_TIME_FORMATが返されていません: %v", err)
	}
}

func TestProject_走査上限到達時は短い結果をそのまま返す(t *testing.T) {
	// 上限内のすべての月曜スロットを埋める
	occupied := map[string]struct{}{}
	for i := 0; i < maxProjectionAttempts+10; i++ {
		d := time.Date(2026, 9, 1+i, 14, 0, 0, 0, time.UTC)
		if d.Weekday() == time.Monday {
			occupied[OccupiedKey(d)] = struct{}{}
		}
	}

	got, err := Project(ProjectionInput{
		SelectedWeekdays: []int{0},
		TimeOfDay:        "14:00",
		Count:            5,
		Occupied:         occupied,
		Now:              projectorNow,
	})
	if err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("全スロットが埋まっているのに候補が返されました: %v", got)
	}
}

func TestProject_同一入力に対して決定的である(t *testing.T) {
	in := ProjectionInput{
		SelectedWeekdays: []int{2, 5},
		TimeOfDay:        "09:00",
		Count:            4,
		Now:              projectorNow,
	}

	first, err := Project(in)
	if err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}
	second, err := Project(in)
	if err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("件数が一致しません: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("result[%d]が一致しません: %v vs %v", i, first[i], second[i])
		}
	}

	// 結果は狭義単調増加で、曜日は選択集合に含まれる
	for i, at := range first {
		if i > 0 && !first[i-1].Before(at) {
			t.Errorf("結果が単調増加ではありません: %v", first)
		}
		if at.Weekday() != time.Wednesday && at.Weekday() != time.Saturday {
			t.Errorf("選択外の曜日が含まれています: %v", at)
		}
	}
}
