package conflict

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
)

// mockChecker はCheckerのモック実装。
type mockChecker struct {
	checkConflictsFn func(ctx context.Context, storeID, postID string, at time.Time) ([]model.RawConflict, error)
}

func (m *mockChecker) CheckConflicts(ctx context.Context, storeID, postID string, at time.Time) ([]model.RawConflict, error) {
	if m.checkConflictsFn != nil {
		return m.checkConflictsFn(ctx, storeID, postID, at)
	}
	return nil, nil
}

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var checkAt = time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC)

func TestClassify_深刻度ごとに固定メッセージが割り当てられる(t *testing.T) {
	raw := []model.RawConflict{
		{Priority: "high"},
		{Priority: "Medium"},
		{Priority: "low"},
		{Priority: "unknown"}, // 未知の優先度はlowに分類される
	}

	records := Classify(raw, checkAt)

	if len(records) != 4 {
		t.Fatalf("件数が一致しません: %d", len(records))
	}

	wantMessages := []string{
		"High priority conflict detected. Consider rescheduling.",
		"Potential conflict. Review before scheduling.",
		"Minor conflict detected.",
		"Minor conflict detected.",
	}
	wantSeverities := []model.ConflictSeverity{
		model.ConflictSeverityHigh,
		model.ConflictSeverityMedium,
		model.ConflictSeverityLow,
		model.ConflictSeverityLow,
	}
	for i, rec := range records {
		if rec.Message != wantMessages[i] {
			t.Errorf("records[%d].Message = %q, want %q", i, rec.Message, wantMessages[i])
		}
		if rec.Severity != wantSeverities[i] {
			t.Errorf("records[%d].Severity = %q, want %q", i, rec.Severity, wantSeverities[i])
		}
		if rec.TargetDateKey != "2026-09-02" {
			t.Errorf("records[%d].TargetDateKey = %q", i, rec.TargetDateKey)
		}
	}
}

func TestHasHighSeverity_highが1件でもあればtrue(t *testing.T) {
	records := []model.ConflictRecord{
		{Severity: model.ConflictSeverityLow},
		{Severity: model.ConflictSeverityHigh},
	}
	if !HasHighSeverity(records) {
		t.Error("highが含まれるのにfalseが返されました")
	}
	if HasHighSeverity(records[:1]) {
		t.Error("lowのみなのにtrueが返されました")
	}
	if HasHighSeverity(nil) {
		t.Error("空のレコード列でtrueが返されました")
	}
}

func TestAdvisor_Check_分類済みレコードが返り確認要否が更新される(t *testing.T) {
	checker := &mockChecker{
		checkConflictsFn: func(_ context.Context, storeID, postID string, _ time.Time) ([]model.RawConflict, error) {
			if storeID != "store-1" || postID != "post-1" {
				t.Errorf("引数が一致しません: %q %q", storeID, postID)
			}
			return []model.RawConflict{{Priority: "high"}}, nil
		},
	}
	advisor := NewAdvisor(checker, newTestLogger())

	records, err := advisor.Check(context.Background(), "store-1", "post-1", checkAt)
	if err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}
	if len(records) != 1 || records[0].Severity != model.ConflictSeverityHigh {
		t.Errorf("レコードが一致しません: %+v", records)
	}
	if !advisor.RequiresConfirmation(checkAt) {
		t.Error("high検出後にRequiresConfirmationがfalseです")
	}
}

func TestAdvisor_Check_同一日の再チェックは結果を上書きする(t *testing.T) {
	priorities := []string{"high", "low"}
	call := 0
	checker := &mockChecker{
		checkConflictsFn: func(_ context.Context, _, _ string, _ time.Time) ([]model.RawConflict, error) {
			p := priorities[call]
			call++
			return []model.RawConflict{{Priority: p}}, nil
		},
	}
	advisor := NewAdvisor(checker, newTestLogger())

	if _, err := advisor.Check(context.Background(), "store-1", "post-1", checkAt); err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}
	if !advisor.RequiresConfirmation(checkAt) {
		t.Fatal("1回目のhigh検出が記録されていません")
	}

	// 同じ（日付, 記事）の再チェックで結果が集約される
	if _, err := advisor.Check(context.Background(), "store-1", "post-1", checkAt.Add(2*time.Hour)); err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}
	if advisor.RequiresConfirmation(checkAt) {
		t.Error("2回目のlow結果で上書きされていません")
	}
}

func TestAdvisor_Check_選択変更後に届いた古い応答は破棄される(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	checker := &mockChecker{
		checkConflictsFn: func(_ context.Context, _, _ string, at time.Time) ([]model.RawConflict, error) {
			if at.Equal(checkAt) {
				close(firstStarted)
				<-release // 1回目の応答を遅延させる
				return []model.RawConflict{{Priority: "high"}}, nil
			}
			return nil, nil
		},
	}
	advisor := NewAdvisor(checker, newTestLogger())

	type result struct {
		records []model.ConflictRecord
		err     error
	}
	done := make(chan result, 1)
	go func() {
		records, err := advisor.Check(context.Background(), "store-1", "post-1", checkAt)
		done <- result{records: records, err: err}
	}()

	<-firstStarted

	// 1回目の応答が届く前に別の日付へ選択を変更する
	otherAt := checkAt.AddDate(0, 0, 5)
	if _, err := advisor.Check(context.Background(), "store-1", "post-1", otherAt); err != nil {
		t.Fatalf("2回目のチェックでエラーが返されました: %v", err)
	}

	close(release)
	got := <-done

	if got.err != nil {
		t.Fatalf("破棄された応答がエラーを返しました: %v", got.err)
	}
	if got.records != nil {
		t.Errorf("破棄されるべき古い応答が適用されています: %+v", got.records)
	}
	if advisor.RequiresConfirmation(checkAt) {
		t.Error("破棄された応答のhigh結果が記録されています")
	}
}

func TestAdvisor_Check_日付変更でセッションの結果がクリアされる(t *testing.T) {
	checker := &mockChecker{
		checkConflictsFn: func(_ context.Context, _, _ string, at time.Time) ([]model.RawConflict, error) {
			if at.Equal(checkAt) {
				return []model.RawConflict{{Priority: "high"}}, nil
			}
			return nil, nil
		},
	}
	advisor := NewAdvisor(checker, newTestLogger())

	if _, err := advisor.Check(context.Background(), "store-1", "post-1", checkAt); err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}

	// 別の日付への選択変更で以前の日付の結果はクリアされる
	if _, err := advisor.Check(context.Background(), "store-1", "post-1", checkAt.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}
	if advisor.RequiresConfirmation(checkAt) {
		t.Error("選択変更後も以前の結果が残っています")
	}
}

func TestAdvisor_EndSession_保持中の結果が破棄される(t *testing.T) {
	checker := &mockChecker{
		checkConflictsFn: func(_ context.Context, _, _ string, _ time.Time) ([]model.RawConflict, error) {
			return []model.RawConflict{{Priority: "high"}}, nil
		},
	}
	advisor := NewAdvisor(checker, newTestLogger())

	if _, err := advisor.Check(context.Background(), "store-1", "post-1", checkAt); err != nil {
		t.Fatalf("エラーが返されました: %v", err)
	}

	advisor.EndSession()

	if advisor.RequiresConfirmation(checkAt) {
		t.Error("セッション終了後も結果が残っています")
	}
}
