package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pubplan/internal/model"
	"github.com/hitoshi/pubplan/internal/repository"
)

// defaultDebounce は自動補充のデバウンス間隔のデフォルト値。
const defaultDebounce = 2 * time.Second

// State はリコンサイラの状態を表す。
type State string

const (
	StateIdle         State = "idle"
	StateReordering   State = "reordering"
	StateRegenerating State = "regenerating"
	StateRefilling    State = "refilling"
)

// Recorder はキュー操作のメトリクス記録インターフェース。
type Recorder interface {
	// RecordReorder は並び替えの結果（committed / rolled_back）を記録する。
	RecordReorder(outcome string)

	// RecordRefill は補充の契機（manual / auto）を記録する。
	RecordRefill(trigger string)

	// RecordRegenerateTitle はタイトル再生成の成功を記録する。
	RecordRegenerateTitle()

	// SetQueueDepth はストアのキュー現在件数を記録する。
	SetQueueDepth(storeID string, depth int)
}

// NopRecorder は何も記録しないRecorder実装。
type NopRecorder struct{}

func (NopRecorder) RecordReorder(string)      {}
func (NopRecorder) RecordRefill(string)       {}
func (NopRecorder) RecordRegenerateTitle()    {}
func (NopRecorder) SetQueueDepth(string, int) {}

// queueKey はキャッシュ上のキューのリソースキーを返す。
func queueKey(storeID string) string {
	return "queue:" + storeID
}

// Reconciler は1ストアのキューについて、サーバーが所有する正順と
// ローカルミラーの整合性を維持する。並び替えは楽観的にミラーへ適用し、
// サーバー拒否時はスナップショットへロールバックする。成否いずれでも
// 最後にキャッシュを無効化して正データを取り直す（settle）。
type Reconciler struct {
	storeID  string
	store    repository.QueueStore
	cache    Repository
	logger   *slog.Logger
	metrics  Recorder
	debounce time.Duration

	mu     sync.Mutex
	state  State
	mirror []model.Post

	// previousは並び替え実行中のみ非nilで、失敗時の復元先となる。
	previous []model.Post

	// refreshVerはバックグラウンドリフレッシュの世代番号。
	// 並び替え開始時に加算され、古いリフレッシュ応答を破棄する。
	refreshVer    uint64
	refreshCancel context.CancelFunc

	refillInFlight bool

	// debounceVerは補充シグナルの世代番号。発火時に世代が進んでいたら
	// そのタイマーは取り消されたものとして何もしない。
	debounceVer   uint64
	debounceTimer *time.Timer

	closed bool
}

// NewReconciler はReconcilerの新しいインスタンスを生成し、
// キャッシュの無効化フックへ再フェッチを登録する。
// debounceが0以下の場合はデフォルト（2秒）を使う。
func NewReconciler(storeID string, store repository.QueueStore, cache Repository, logger *slog.Logger, metrics Recorder, debounce time.Duration) *Reconciler {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if metrics == nil {
		metrics = NopRecorder{}
	}
	r := &Reconciler{
		storeID:  storeID,
		store:    store,
		cache:    cache,
		logger:   logger,
		metrics:  metrics,
		debounce: debounce,
		state:    StateIdle,
	}
	key := queueKey(storeID)
	cache.OnInvalidate(func(invalidated string) {
		if invalidated == key {
			go r.refresh(context.Background())
		}
	})
	return r
}

// Mirror は現在のローカルミラーのコピーを返す。
func (r *Reconciler) Mirror() []model.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clonePosts(r.mirror)
}

// State は現在の状態を返す。
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Load はサーバーからキューの正順を取得してミラーを更新する。
// 並び替えの適用中は取得を行わず、楽観的更新済みのミラーをそのまま返す。
func (r *Reconciler) Load(ctx context.Context) ([]model.Post, error) {
	r.mu.Lock()
	if r.previous != nil {
		out := clonePosts(r.mirror)
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	posts, err := r.store.Fetch(ctx, r.storeID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.previous == nil {
		r.mirror = clonePosts(posts)
		r.cache.Set(queueKey(r.storeID), clonePosts(posts))
	}
	r.mu.Unlock()
	return posts, nil
}

// Reorder はキューを指定のID順へ並び替える。
//
//  1. 実行中のバックグラウンドリフレッシュをキャンセルする
//  2. 現在のミラーをスナップショットとして退避する
//  3. ミラーへ新しい順序を楽観的に適用する（未知のIDは無視する）
//  4. サーバーへ並び替えを依頼する
//  5. 失敗時はスナップショットへロールバックする
//  6. 成否いずれでもキャッシュを無効化して正データを取り直す
func (r *Reconciler) Reorder(ctx context.Context, orderedIDs []string) ([]model.Post, error) {
	r.mu.Lock()
	if r.state == StateReordering {
		r.mu.Unlock()
		return nil, model.NewQueueBusyError()
	}
	r.cancelRefreshLocked()
	prev := clonePosts(r.mirror)
	r.previous = prev
	r.mirror = remapByID(r.mirror, orderedIDs)
	r.state = StateReordering
	r.mu.Unlock()

	committed, err := r.store.Reorder(ctx, r.storeID, orderedIDs)

	r.mu.Lock()
	if err != nil {
		r.mirror = prev
		r.previous = nil
		r.state = StateIdle
		r.mu.Unlock()

		r.metrics.RecordReorder("rolled_back")
		r.logger.Warn("キューの並び替えに失敗したためロールバックしました",
			slog.String("store_id", r.storeID),
			slog.String("error", err.Error()),
		)
		r.settle()
		return nil, err
	}
	r.mirror = clonePosts(committed)
	r.previous = nil
	r.state = StateIdle
	r.mu.Unlock()

	r.metrics.RecordReorder("committed")
	r.settle()
	return committed, nil
}

// MoveItem はドラッグ操作による1件移動を並び替えとして適用する。
// 移動元・移動先はドラッグ開始時点のミラーのスナップショットに対して
// 解決され、範囲外の指定や同一位置への移動は何もせずnilを返す。
func (r *Reconciler) MoveItem(ctx context.Context, from, to int) ([]model.Post, error) {
	r.mu.Lock()
	snapshot := clonePosts(r.mirror)
	r.mu.Unlock()

	if from == to {
		return snapshot, nil
	}
	if from < 0 || from >= len(snapshot) || to < 0 || to >= len(snapshot) {
		return snapshot, nil
	}

	ids := make([]string, 0, len(snapshot))
	for _, p := range snapshot {
		ids = append(ids, p.ID)
	}
	moved := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]string{moved}, ids[to:]...)...)

	return r.Reorder(ctx, ids)
}

// RegenerateTitle は記事タイトルの再生成を依頼する。
// 成功時はローカルで結果を当て込まず、無効化による再フェッチで
// 確定値を取り直す。失敗はそのまま呼び出し元へ返す。
func (r *Reconciler) RegenerateTitle(ctx context.Context, postID string) error {
	r.mu.Lock()
	entered := r.state == StateIdle
	if entered {
		r.state = StateRegenerating
	}
	r.mu.Unlock()

	_, err := r.store.RegenerateTitle(ctx, r.storeID, postID)

	r.mu.Lock()
	if entered && r.state == StateRegenerating {
		r.state = StateIdle
	}
	r.mu.Unlock()

	if err != nil {
		return err
	}
	r.metrics.RecordRegenerateTitle()
	r.settle()
	return nil
}

// Refill は手動契機の補充を実行する。既に補充が実行中の場合は
// 二重実行せず何もしない（冪等）。失敗は呼び出し元へ返す。
func (r *Reconciler) Refill(ctx context.Context) (*model.RefillResult, error) {
	r.mu.Lock()
	if r.refillInFlight {
		r.mu.Unlock()
		return &model.RefillResult{}, nil
	}
	r.refillInFlight = true
	entered := r.state == StateIdle
	if entered {
		r.state = StateRefilling
	}
	r.mu.Unlock()

	res, err := r.store.Refill(ctx, r.storeID)

	r.mu.Lock()
	r.refillInFlight = false
	if entered && r.state == StateRefilling {
		r.state = StateIdle
	}
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	r.metrics.RecordRefill("manual")
	r.settle()
	return res, nil
}

// NotifyMetrics はキューの充足状況の観測値を受け取り、目標未満の場合に
// デバウンス付きで自動補充を予約する。デバウンス中に新しいシグナルが
// 届いた場合は予約を張り直す。
func (r *Reconciler) NotifyMetrics(m model.QueueMetrics) {
	r.metrics.SetQueueDepth(r.storeID, m.CurrentCount)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !m.NeedsRefill || m.TargetCount <= 0 {
		return
	}
	r.debounceVer++
	ver := r.debounceVer
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceTimer = time.AfterFunc(r.debounce, func() {
		r.autoRefill(ver)
	})
}

// Close はデバウンスタイマーと実行中のリフレッシュを停止する。
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.debounceVer++
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
		r.debounceTimer = nil
	}
	r.cancelRefreshLocked()
}

// settle はキャッシュを無効化し、無効化フック経由の再フェッチで
// ミラーをサーバーの正データへ収束させる。
func (r *Reconciler) settle() {
	r.cache.Invalidate(queueKey(r.storeID))
}

// refresh はサーバーからキューを取り直してミラーとキャッシュを更新する。
// 取得中に世代が進んだ応答（並び替え開始によるキャンセル後など）は破棄する。
func (r *Reconciler) refresh(ctx context.Context) {
	r.mu.Lock()
	if r.closed || r.previous != nil {
		r.mu.Unlock()
		return
	}
	r.cancelRefreshLocked()
	r.refreshVer++
	ver := r.refreshVer
	rctx, cancel := context.WithCancel(ctx)
	r.refreshCancel = cancel
	r.mu.Unlock()

	posts, err := r.store.Fetch(rctx, r.storeID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refreshVer != ver || r.previous != nil || r.closed {
		// 取得中に新しい操作が始まった。この応答は古いので捨てる。
		return
	}
	r.refreshCancel = nil
	if err != nil {
		r.logger.Debug("キューの再フェッチに失敗しました",
			slog.String("store_id", r.storeID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.mirror = clonePosts(posts)
	r.cache.Set(queueKey(r.storeID), clonePosts(posts))
}

// autoRefill はデバウンス満了後の自動補充。発火時点で充足状況を測り直し、
// 依然として目標未満の場合のみ補充する。自動契機の失敗はログに留め、
// ユーザーへは伝播しない。
func (r *Reconciler) autoRefill(ver uint64) {
	r.mu.Lock()
	if r.closed || ver != r.debounceVer || r.refillInFlight {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	ctx := context.Background()
	m, err := r.store.Metrics(ctx, r.storeID)
	if err != nil {
		r.logger.Warn("自動補充前の充足状況の取得に失敗しました",
			slog.String("store_id", r.storeID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !m.NeedsRefill || m.TargetCount <= 0 || m.CurrentCount >= m.TargetCount {
		return
	}

	r.mu.Lock()
	if r.closed || ver != r.debounceVer || r.refillInFlight {
		r.mu.Unlock()
		return
	}
	r.refillInFlight = true
	entered := r.state == StateIdle
	if entered {
		r.state = StateRefilling
	}
	r.mu.Unlock()

	_, err = r.store.Refill(ctx, r.storeID)

	r.mu.Lock()
	r.refillInFlight = false
	if entered && r.state == StateRefilling {
		r.state = StateIdle
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("自動補充に失敗しました",
			slog.String("store_id", r.storeID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.metrics.RecordRefill("auto")
	r.settle()
}

// cancelRefreshLocked は実行中のバックグラウンドリフレッシュを取り消す。
// 呼び出し元がmuを保持していること。
func (r *Reconciler) cancelRefreshLocked() {
	r.refreshVer++
	if r.refreshCancel != nil {
		r.refreshCancel()
		r.refreshCancel = nil
	}
}

// remapByID は既存のミラー内の記事をorderedIDsの順へ並べ替える。
// ミラーに存在しないIDは無視し、orderedIDsに含まれないミラー内の
// 記事は末尾に元の相対順で残す。
func remapByID(mirror []model.Post, orderedIDs []string) []model.Post {
	byID := make(map[string]model.Post, len(mirror))
	for _, p := range mirror {
		byID[p.ID] = p
	}
	seen := make(map[string]struct{}, len(orderedIDs))
	out := make([]model.Post, 0, len(mirror))
	for _, id := range orderedIDs {
		p, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	for _, p := range mirror {
		if _, ok := seen[p.ID]; !ok {
			out = append(out, p)
		}
	}
	return out
}

func clonePosts(posts []model.Post) []model.Post {
	out := make([]model.Post, len(posts))
	copy(out, posts)
	return out
}
