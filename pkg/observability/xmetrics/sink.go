package xmetrics

import (
	"sort"
	"strings"
	"sync"
)

// Sink 计数/水位指标接口。
//
// 实现必须并发安全、不阻塞调用方，且不得 panic。
type Sink interface {
	// Increment 将名为 name 的计数器加 1。
	Increment(name string)

	// RecordLevel 记录名为 name 的当前水位。
	RecordLevel(name string, value int64)
}

// Nop 是 Sink 的空实现。
type Nop struct{}

// Increment 空实现。
func (Nop) Increment(string) {}

// RecordLevel 空实现。
func (Nop) RecordLevel(string, int64) {}

// OrNop 在 s 为 nil 时返回 Nop。
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// prefixed 为指标名添加前缀。
type prefixed struct {
	prefix string
	next   Sink
}

// Prefixed 返回为所有指标名添加 "prefix." 前缀的 Sink。
// prefix 为空时直接返回 next。
func Prefixed(prefix string, next Sink) Sink {
	next = OrNop(next)
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return next
	}
	return &prefixed{prefix: prefix + ".", next: next}
}

func (p *prefixed) Increment(name string) {
	p.next.Increment(p.prefix + name)
}

func (p *prefixed) RecordLevel(name string, value int64) {
	p.next.RecordLevel(p.prefix+name, value)
}

// tee 将指标同时写入多个 Sink。
type tee []Sink

// Tee 返回同时写入所有 sinks 的 Sink，nil 元素会被跳过。
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t tee) Increment(name string) {
	for _, s := range t {
		s.Increment(name)
	}
}

func (t tee) RecordLevel(name string, value int64) {
	for _, s := range t {
		s.RecordLevel(name, value)
	}
}

// Memory 进程内 Sink 实现，记录每个计数器的累计值与每个水位的最新值。
//
// 零值可直接使用。
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
	levels   map[string]int64
}

// NewMemory 创建 Memory Sink。
func NewMemory() *Memory {
	return &Memory{}
}

// Increment 将计数器加 1。
func (m *Memory) Increment(name string) {
	m.mu.Lock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	m.counters[name]++
	m.mu.Unlock()
}

// RecordLevel 记录水位最新值。
func (m *Memory) RecordLevel(name string, value int64) {
	m.mu.Lock()
	if m.levels == nil {
		m.levels = make(map[string]int64)
	}
	m.levels[name] = value
	m.mu.Unlock()
}

// Count 返回计数器当前值，不存在时返回 0。
func (m *Memory) Count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Level 返回水位最新值及是否记录过。
func (m *Memory) Level(name string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.levels[name]
	return v, ok
}

// Counters 返回所有计数器的快照。
func (m *Memory) Counters() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}

// Names 返回已记录的计数器名称（已排序），便于输出。
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.counters))
	for k := range m.counters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Reset 清空所有记录。
func (m *Memory) Reset() {
	m.mu.Lock()
	m.counters = nil
	m.levels = nil
	m.mu.Unlock()
}

var (
	_ Sink = Nop{}
	_ Sink = (*Memory)(nil)
	_ Sink = (*prefixed)(nil)
	_ Sink = tee(nil)
)
