// Package schedule は定期公開スケジュールの投影計算を提供する。
// 曜日インデックスの内部規約とtime.Weekdayの相互変換、HH:MMのパース、
// 将来の公開日時を導出するプロジェクタを含む。
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
)

// 内部規約の曜日インデックスは月曜=0〜日曜=6。
// time.Weekdayの日曜=0〜土曜=6とは異なるため、境界では必ず変換関数を通すこと。

// ToNative は内部曜日インデックス（月曜=0）をtime.Weekday（日曜=0）へ変換する。
// 0〜6の全域で定義され、FromNativeと相互に逆関数となる。
func ToNative(idx int) time.Weekday {
	return time.Weekday((idx + 1) % 7)
}

// FromNative はtime.Weekday（日曜=0）を内部曜日インデックス（月曜=0）へ変換する。
// ToNativeの逆関数。
func FromNative(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// ValidateWeekdaySet は曜日集合の構造バリデーションを行う。
// 0〜6の範囲外の値は丸めずにエラーとし、重複も集合として不正とみなす。
// 空集合は構造上は正当（プロジェクタが空の結果を返すだけ）。
func ValidateWeekdaySet(weekdays []int) error {
	seen := make(map[int]bool, len(weekdays))
	for _, d := range weekdays {
		if d < 0 || d > 6 {
			return model.NewInvalidWeekdaySetError(fmt.Sprintf("曜日インデックス %d は範囲外です", d))
		}
		if seen[d] {
			return model.NewInvalidWeekdaySetError(fmt.Sprintf("曜日インデックス %d が重複しています", d))
		}
		seen[d] = true
	}
	return nil
}

// NormalizeWeekdaySet は検証済みの曜日集合を昇順に整列したコピーとして返す。
func NormalizeWeekdaySet(weekdays []int) []int {
	out := make([]int, len(weekdays))
	copy(out, weekdays)
	sort.Ints(out)
	return out
}

// ParseTimeOfDay は"HH:MM"（24時間表記）をパースして時と分を返す。
// 範囲外・書式不正の場合はINVALID_TIME_FORMATエラーを返す。
func ParseTimeOfDay(s string) (hour int, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, model.NewInvalidTimeFormatError(s)
	}
	h, herr := strconv.Atoi(parts[0])
	m, merr := strconv.Atoi(parts[1])
	if herr != nil || merr != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, model.NewInvalidTimeFormatError(s)
	}
	return h, m, nil
}
