package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pubplan/internal/repository"
)

// Manager はストアIDごとのReconcilerを管理する。
// リコンサイラはストア単位で1つだけ生成され、以後の取得では再利用される。
type Manager struct {
	store    repository.QueueStore
	cache    Repository
	logger   *slog.Logger
	metrics  Recorder
	debounce time.Duration

	mu          sync.Mutex
	reconcilers map[string]*Reconciler
}

// NewManager はManagerの新しいインスタンスを生成する。
func NewManager(store repository.QueueStore, cache Repository, logger *slog.Logger, metrics Recorder, debounce time.Duration) *Manager {
	return &Manager{
		store:       store,
		cache:       cache,
		logger:      logger,
		metrics:     metrics,
		debounce:    debounce,
		reconcilers: map[string]*Reconciler{},
	}
}

// Get はストアのReconcilerを返す。未生成の場合は生成して登録する。
func (m *Manager) Get(storeID string) *Reconciler {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reconcilers[storeID]; ok {
		return r
	}
	r := NewReconciler(storeID, m.store, m.cache, m.logger, m.metrics, m.debounce)
	m.reconcilers[storeID] = r
	return r
}

// CloseAll は全リコンサイラを停止する。シャットダウン時に呼ぶ。
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reconcilers {
		r.Close()
	}
	m.reconcilers = map[string]*Reconciler{}
}
