package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker 进程内的锁与去重实现
// Redis 不可用时作为降级方案，只在单实例部署下有效
type MemoryLocker struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

// NewMemoryLocker 创建进程内锁
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		items: make(map[string]time.Time),
		now:   time.Now,
	}
}

// TryLock 尝试加锁
func (m *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.items[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.items[key] = now.Add(ttl)
	return true, nil
}

// Unlock 释放锁
func (m *MemoryLocker) Unlock(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// MarkOnce 首次标记返回 true
func (m *MemoryLocker) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.TryLock(ctx, key, ttl)
}
