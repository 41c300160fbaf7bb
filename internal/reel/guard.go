package reel

import "sync"

// Guard 按 key 的忙碌标记，同一 key 同时只允许一个持有者
type Guard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// NewGuard 创建 Guard
func NewGuard() *Guard {
	return &Guard{busy: make(map[string]struct{})}
}

// TryAcquire 尝试占用 key，已被占用时返回 false
func (g *Guard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return false
	}
	g.busy[key] = struct{}{}
	return true
}

// Release 释放 key
func (g *Guard) Release(key string) {
	g.mu.Lock()
	delete(g.busy, key)
	g.mu.Unlock()
}

// Busy 查询 key 是否被占用
func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[key]
	return ok
}
