package xqueue

import (
	"context"
	"sync"
)

// Memory 是有界的进程内队列。
type Memory struct {
	mu       sync.Mutex
	capacity int
	items    []Item
	fail     error
	closed   bool
}

// NewMemory 创建容量为 capacity 的内存队列，capacity <= 0 表示不限。
func NewMemory(capacity int) *Memory {
	return &Memory{capacity: capacity}
}

// Enqueue 实现 Enqueuer。
func (m *Memory) Enqueue(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := item.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return ErrClosed
	case m.fail != nil:
		return m.fail
	case m.capacity > 0 && len(m.items) >= m.capacity:
		return ErrFull
	}
	m.items = append(m.items, item)
	return nil
}

// Fail 使后续 Enqueue 返回 err，err 为 nil 时恢复。
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Items 返回 topic 下的消息副本，topic 为空时返回全部。
func (m *Memory) Items(topic string) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, it := range m.items {
		if topic == "" || it.Topic == topic {
			out = append(out, it)
		}
	}
	return out
}

// Drain 取出并清空全部消息。
func (m *Memory) Drain() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.items
	m.items = nil
	return out
}

// Len 返回当前消息数。
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close 关闭队列，之后的 Enqueue 返回 ErrClosed。
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

var _ Enqueuer = (*Memory)(nil)
