package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
)

func TestToNative_月曜0が日曜0系へ変換される(t *testing.T) {
	tests := []struct {
		idx  int
		want time.Weekday
	}{
		{0, time.Monday},
		{1, time.Tuesday},
		{2, time.Wednesday},
		{3, time.Thursday},
		{4, time.Friday},
		{5, time.Saturday},
		{6, time.Sunday},
	}

	for _, tt := range tests {
		if got := ToNative(tt.idx); got != tt.want {
			t.Errorf("ToNative(%d) = %v, want %v", tt.idx, got, tt.want)
		}
	}
}

func TestFromNative_ToNativeと相互に逆関数となる(t *testing.T) {
	for idx := 0; idx < 7; idx++ {
		if got := FromNative(ToNative(idx)); got != idx {
			t.Errorf("FromNative(ToNative(%d)) = %d", idx, got)
		}
	}
	for w := time.Sunday; w <= time.Saturday; w++ {
		if got := ToNative(FromNative(w)); got != w {
			t.Errorf("ToNative(FromNative(%v)) = %v", w, got)
		}
	}
}

func TestValidateWeekdaySet_範囲外と重複を拒否する(t *testing.T) {
	tests := []struct {
		name     string
		weekdays []int
		wantErr  bool
	}{
		{"有効な集合", []int{0, 2, 4}, false},
		{"空集合は構造上正当", []int{}, false},
		{"全曜日", []int{0, 1, 2, 3, 4, 5, 6}, false},
		{"範囲外の7", []int{0, 7}, true},
		{"負の値", []int{-1, 3}, true},
		{"重複", []int{1, 3, 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeekdaySet(tt.weekdays)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWeekdaySet(%v) = %v, wantErr %v", tt.weekdays, err, tt.wantErr)
			}
			if err != nil {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidWeekdaySet {
					t.Errorf("エラーコードが一致しません: %v", err)
				}
			}
		})
	}
}

func TestNormalizeWeekdaySet_昇順のコピーを返す(t *testing.T) {
	input := []int{4, 0, 2}
	got := NormalizeWeekdaySet(input)

	if len(got) != 3 || got[0] != 0 || got[1] != 2 || got[2] != 4 {
		t.Errorf("NormalizeWeekdaySet(%v) = %v", input, got)
	}
	// 入力は変更されない
	if input[0] != 4 {
		t.Error("入力スライスが破壊されています")
	}
}

func TestParseTimeOfDay_有効な時刻をパースする(t *testing.T) {
	tests := []struct {
		input      string
		wantHour   int
		wantMinute int
	}{
		{"00:00", 0, 0},
		{"09:30", 9, 30},
		{"14:00", 14, 0},
		{"23:59", 23, 59},
	}

	for _, tt := range tests {
		h, m, err := ParseTimeOfDay(tt.input)
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q)がエラーを返しました: %v", tt.input, err)
			continue
		}
		if h != tt.wantHour || m != tt.wantMinute {
			t.Errorf("ParseTimeOfDay(%q) = (%d, %d), want (%d, %d)", tt.input, h, m, tt.wantHour, tt.wantMinute)
		}
	}
}

func TestParseTimeOfDay_不正な書式を拒否する(t *testing.T) {
	inputs := []string{"9:00", "25:00", "14:60", "14時", "", "14:00:00", "1400"}

	for _, input := range inputs {
		_, _, err := ParseTimeOfDay(input)
		if err == nil {
			t.Errorf("ParseTimeOfDay(%q)がエラーを返しませんでした", input)
			continue
		}
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidTimeFormat {
			t.Errorf("エラーコードが一致しません: %v", err)
		}
	}
}
