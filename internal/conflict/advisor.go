// Package conflict はスケジュール衝突の検出と深刻度分類を提供する。
// 外部チェッカーへの問い合わせ結果をConflictRecordへ変換し、
// スケジューリングモーダルのセッション単位で結果の鮮度を管理する。
package conflict

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
)

// 深刻度ごとの表示メッセージ。管理画面のUIがそのまま表示する固定文言。
const (
	messageHigh   = "High priority conflict detected. Consider rescheduling."
	messageMedium = "Potential conflict. Review before scheduling."
	messageLow    = "Minor conflict detected."
)

// dateKeyLayout は衝突レコードのキーとなるISO日付のフォーマット。
const dateKeyLayout = "2006-01-02"

// Checker は外部の衝突チェッカーへのインターフェース。
// 通常はrepository.PostsStoreが実装する。
type Checker interface {
	CheckConflicts(ctx context.Context, storeID, postID string, at time.Time) ([]model.RawConflict, error)
}

// Classify は未分類の衝突エントリを深刻度付きのConflictRecordへ変換する。
// レコードは候補日時の暦日をキーとする（正確な時刻ではない）。
// Priorityはhigh/mediumのみを区別し、それ以外はすべてlowに分類する。
func Classify(raw []model.RawConflict, at time.Time) []model.ConflictRecord {
	dateKey := at.Format(dateKeyLayout)
	records := make([]model.ConflictRecord, 0, len(raw))
	for _, rc := range raw {
		records = append(records, model.ConflictRecord{
			TargetDateKey: dateKey,
			Severity:      classifySeverity(rc.Priority),
			Message:       messageFor(classifySeverity(rc.Priority)),
		})
	}
	return records
}

// HasHighSeverity はレコード列にhigh深刻度の衝突が含まれるかを返す。
// highが1件でもあれば、コミットには明示的なユーザー確認が必要となる。
func HasHighSeverity(records []model.ConflictRecord) bool {
	for _, r := range records {
		if r.Severity == model.ConflictSeverityHigh {
			return true
		}
	}
	return false
}

func classifySeverity(priority string) model.ConflictSeverity {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "high":
		return model.ConflictSeverityHigh
	case "medium":
		return model.ConflictSeverityMedium
	default:
		return model.ConflictSeverityLow
	}
}

func messageFor(s model.ConflictSeverity) string {
	switch s {
	case model.ConflictSeverityHigh:
		return messageHigh
	case model.ConflictSeverityMedium:
		return messageMedium
	default:
		return messageLow
	}
}

// selection はモーダルセッションで現在選択中の（日付, 記事）の組。
type selection struct {
	storeID string
	postID  string
	dateKey string
}

// Advisor はモーダルセッション単位の衝突チェックを行う。
// 選択中の（日付, 記事）と一致しなくなった問い合わせの応答は、
// 到着時に破棄され適用されない。結果はセッション終了または
// 対象日の変更でクリアされる一時データとして保持する。
type Advisor struct {
	mu      sync.Mutex
	checker Checker
	logger  *slog.Logger

	// versionはCheck/EndSessionのたびに加算され、古い応答の判別に使う。
	version uint64
	current selection
	records map[string][]model.ConflictRecord // dateKey → 最新のレコード
}

// NewAdvisor はAdvisorの新しいインスタンスを生成する。
func NewAdvisor(checker Checker, logger *slog.Logger) *Advisor {
	return &Advisor{
		checker: checker,
		logger:  logger,
		records: map[string][]model.ConflictRecord{},
	}
}

// Check は選択中の（日付, 記事）を更新し、外部チェッカーへ問い合わせる。
// 応答の到着時点で選択が変わっていた場合、その応答は破棄され
// （nil, nil）を返す。同一日の連続チェックは同じdateKeyのエントリを
// 上書きするため、結果は日付ごとに1エントリへ集約される。
func (a *Advisor) Check(ctx context.Context, storeID, postID string, at time.Time) ([]model.ConflictRecord, error) {
	sel := selection{storeID: storeID, postID: postID, dateKey: at.Format(dateKeyLayout)}

	a.mu.Lock()
	a.version++
	ver := a.version
	if a.current != sel {
		// 対象日または記事が変わったのでセッションの結果をクリアする
		a.records = map[string][]model.ConflictRecord{}
	}
	a.current = sel
	a.mu.Unlock()

	raw, err := a.checker.CheckConflicts(ctx, storeID, postID, at)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.version != ver || a.current != sel {
		// 選択が変わった後に届いた古い応答は適用しない
		a.logger.Debug("古い衝突チェック応答を破棄しました",
			slog.String("store_id", storeID),
			slog.String("date_key", sel.dateKey),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	records := Classify(raw, at)
	a.records[sel.dateKey] = records
	return records, nil
}

// RequiresConfirmation は指定日時のコミットにユーザー確認が必要かを返す。
// high深刻度の衝突が記録されている場合のみtrue。
func (a *Advisor) RequiresConfirmation(at time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return HasHighSeverity(a.records[at.Format(dateKeyLayout)])
}

// EndSession はモーダルセッションを終了し、保持中の結果を破棄する。
// 以後に届く実行中チェックの応答も無効化される。
func (a *Advisor) EndSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.version++
	a.current = selection{}
	a.records = map[string][]model.ConflictRecord{}
}
