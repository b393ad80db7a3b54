package xhealth

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Snapshot 是健康状态的只读快照。
type Snapshot struct {
	Failing bool
	Err     error     // 仍处于失败的来源中最近一次 SetFailing 的原因
	Since   time.Time // 进入当前状态的时间
	Flips   int64     // 状态翻转次数
	Owners  []string  // 处于失败的来源，按名称排序
}

// Status 返回 "failing" 或 "ok"。
func (s Snapshot) Status() string {
	if s.Failing {
		return "failing"
	}
	return "ok"
}

// Option 配置 State。
type Option func(*State)

// WithOnChange 设置状态翻转回调，在状态锁之外同步调用。
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *State) {
		s.onChange = fn
	}
}

// WithClock 替换时间源，用于测试。
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// State 是可注入的服务健康标记，并发安全。
//
// 多个组件可共享同一 State，各自以 owner 区分：任一 owner 失败时整体为失败，
// 某个 owner 恢复只清除它自己的标记。
type State struct {
	mu       sync.RWMutex
	snap     Snapshot
	failing  map[string]failure
	seq      uint64
	onChange func(Snapshot)
	now      func() time.Time
}

type failure struct {
	err error
	seq uint64
}

// New 创建处于健康状态的 State。
func New(opts ...Option) *State {
	s := &State{now: time.Now, failing: make(map[string]failure)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.snap.Since = s.now()
	return s
}

// SetFailing 以默认 owner 标记失败，见 [State.SetFailingFor]。
func (s *State) SetFailing(err error) bool {
	return s.SetFailingFor("", err)
}

// Recover 清除默认 owner 的失败标记，见 [State.RecoverFor]。
func (s *State) Recover() bool {
	return s.RecoverFor("")
}

// SetFailingFor 标记 owner 失败。owner 从健康转为失败时返回 true；
// 已处于失败状态时仅更新原因。整体从健康转为失败时触发回调。
func (s *State) SetFailingFor(owner string, err error) bool {
	s.mu.Lock()
	_, was := s.failing[owner]
	s.seq++
	s.failing[owner] = failure{err: err, seq: s.seq}
	flipped := s.refreshLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if flipped {
		s.notify(snap)
	}
	return !was
}

// RecoverFor 清除 owner 的失败标记。owner 从失败转为健康时返回 true；
// 其余 owner 仍失败时整体保持失败。整体转为健康时触发回调。
func (s *State) RecoverFor(owner string) bool {
	s.mu.Lock()
	if _, was := s.failing[owner]; !was {
		s.mu.Unlock()
		return false
	}
	delete(s.failing, owner)
	flipped := s.refreshLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if flipped {
		s.notify(snap)
	}
	return true
}

// IsFailing 报告是否有任一 owner 处于失败。
func (s *State) IsFailing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Failing
}

// IsFailingFor 报告 owner 是否处于失败。
func (s *State) IsFailingFor(owner string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.failing[owner]
	return ok
}

// Err 返回失败原因，健康时返回 nil。
func (s *State) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Err
}

// Snapshot 返回当前快照。
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// refreshLocked 由 failing 重算整体状态，返回整体是否翻转。
func (s *State) refreshLocked() bool {
	var latest failure
	for _, f := range s.failing {
		if f.seq > latest.seq {
			latest = f
		}
	}
	s.snap.Err = latest.err
	failing := len(s.failing) > 0
	if failing == s.snap.Failing {
		return false
	}
	s.snap.Failing = failing
	s.snap.Since = s.now()
	s.snap.Flips++
	return true
}

func (s *State) snapshotLocked() Snapshot {
	snap := s.snap
	snap.Owners = slices.Sorted(maps.Keys(s.failing))
	return snap
}

func (s *State) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
