package xbreaker

import "sync/atomic"

// Holder 原子地持有当前 Breaker，零值持有 Open。
type Holder[T any] struct {
	p atomic.Pointer[Breaker[T]]
}

// NewHolder 创建持有 Open Breaker 的 Holder。
func NewHolder[T any]() *Holder[T] {
	h := &Holder[T]{}
	h.p.Store(Open[T]())
	return h
}

// Load 返回当前 Breaker 快照，永不为 nil。
func (h *Holder[T]) Load() *Breaker[T] {
	if b := h.p.Load(); b != nil {
		return b
	}
	open := Open[T]()
	if h.p.CompareAndSwap(nil, open) {
		return open
	}
	return h.p.Load()
}

// Store 无条件替换当前 Breaker，返回被替换的 Breaker。
func (h *Holder[T]) Store(next *Breaker[T]) *Breaker[T] {
	if next == nil {
		next = Open[T]()
	}
	return h.p.Swap(next)
}

// CompareAndSwap 仅当当前 Breaker 仍为 old 时替换为 next。
func (h *Holder[T]) CompareAndSwap(old, next *Breaker[T]) bool {
	if next == nil {
		next = Open[T]()
	}
	if old == nil {
		return false
	}
	return h.p.CompareAndSwap(old, next)
}

// Replace 替换为 next 并释放被替换的 Breaker 持有的资源。
func (h *Holder[T]) Replace(next *Breaker[T], release func(T) error) {
	if prev := h.Store(next); prev != nil && prev != next {
		prev.Cleanup(release)
	}
}

// Reset 以一次状态转换切回 Open 并释放旧资源，返回被替换的 Breaker。
func (h *Holder[T]) Reset(release func(T) error) *Breaker[T] {
	prev := h.Store(Open[T]())
	if prev != nil {
		prev.Cleanup(release)
	}
	return prev
}
