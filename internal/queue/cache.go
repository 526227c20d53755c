// Package queue はサーバー所有のキュー順序とクライアント表示ミラーの
// 整合性維持を担うリコンサイラを提供する。楽観的並び替えとロールバック、
// 無効化による再同期（settle）、デバウンス付き自動補充を含む。
package queue

import "sync"

// Repository はリソースキー単位のキャッシュインターフェース。
// リコンサイラはシングルトンではなくこのインターフェースに依存する。
// Invalidateは登録済みのフックを発火させ、購読側の再フェッチを誘発する。
type Repository interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Invalidate(key string)

	// OnInvalidate はキー無効化時に呼ばれるフックを登録する。
	// フックはキャッシュのロック外で同期的に呼ばれる。
	OnInvalidate(fn func(key string))
}

// MemoryRepository はRepositoryのインメモリ実装。
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[string]any
	hooks   []func(key string)
}

// NewMemoryRepository はMemoryRepositoryの新しいインスタンスを生成する。
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: map[string]any{}}
}

// Get はキーに対応する値を返す。
func (m *MemoryRepository) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Set はキーに値を保存する。
func (m *MemoryRepository) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Invalidate はキーのエントリを破棄し、登録済みフックを発火する。
func (m *MemoryRepository) Invalidate(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	hooks := make([]func(string), len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	// ロック外で発火（フック内からのキャッシュ操作でデッドロックしないように）
	for _, fn := range hooks {
		fn(key)
	}
}

// OnInvalidate は無効化フックを登録する。
func (m *MemoryRepository) OnInvalidate(fn func(key string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}
