package xstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Memory 是进程内存储驱动，所有会话共享同一份数据。
//
// 支持故障注入：连接失败、按表失败、按表返回未生效写入，
// 以及模拟底层连接断开（DropSessions）。
type Memory struct {
	mu         sync.Mutex
	tables     map[string][]Row
	commands   []string
	failConn   error
	failCmd    error
	failTable  map[string]error
	notApplied map[string]bool
	sessions   []*memSession
	connects   atomic.Int64
}

// NewMemory 创建空的内存驱动。
func NewMemory() *Memory {
	return &Memory{
		tables:     make(map[string][]Row),
		failTable:  make(map[string]error),
		notApplied: make(map[string]bool),
	}
}

// Name 实现 Driver。
func (m *Memory) Name() string { return "memory" }

// Connect 实现 Driver。
func (m *Memory) Connect(ctx context.Context, addresses []string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, ErrNoEndpoints
	}
	m.connects.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConn != nil {
		return nil, m.failConn
	}
	s := &memSession{store: m, addresses: slices.Clone(addresses)}
	m.sessions = append(m.sessions, s)
	return s, nil
}

// FailConnect 使后续 Connect 返回 err，err 为 nil 时恢复。
func (m *Memory) FailConnect(err error) {
	m.mu.Lock()
	m.failConn = err
	m.mu.Unlock()
}

// FailCommands 使后续命令语句返回 err，err 为 nil 时恢复。
func (m *Memory) FailCommands(err error) {
	m.mu.Lock()
	m.failCmd = err
	m.mu.Unlock()
}

// FailTable 使针对 table 的语句返回 err，err 为 nil 时恢复。
func (m *Memory) FailTable(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failTable, table)
		return
	}
	m.failTable[table] = err
}

// NotApplied 使针对 table 的写入不落库并返回 Applied=false。
func (m *Memory) NotApplied(table string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !on {
		delete(m.notApplied, table)
		return
	}
	m.notApplied[table] = true
}

// DropSessions 模拟底层连接断开：所有已建立会话变为 Closed。
func (m *Memory) DropSessions() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = nil
	m.mu.Unlock()
	for _, s := range sessions {
		s.closed.Store(true)
	}
}

// Rows 返回 table 当前全部行的副本。
func (m *Memory) Rows(table string) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, r.Clone())
	}
	return out
}

// Commands 返回已执行的原始命令。
func (m *Memory) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.commands)
}

// Connects 返回 Connect 调用次数（含失败）。
func (m *Memory) Connects() int64 {
	return m.connects.Load()
}

func (m *Memory) execute(stmt Statement) (*Result, error) {
	if err := stmt.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failTable[stmt.Table]; err != nil && stmt.Kind != KindCommand {
		return nil, err
	}
	switch stmt.Kind {
	case KindCommand:
		if m.failCmd != nil {
			return nil, m.failCmd
		}
		m.commands = append(m.commands, stmt.Command)
		return &Result{Applied: true}, nil
	case KindInsert:
		return m.insertLocked(stmt), nil
	case KindUpdate:
		return m.updateLocked(stmt), nil
	case KindDelete:
		return m.deleteLocked(stmt), nil
	default:
		return m.selectLocked(stmt), nil
	}
}

func (m *Memory) insertLocked(stmt Statement) *Result {
	if m.notApplied[stmt.Table] {
		return &Result{}
	}
	if (stmt.IfNotExists || stmt.Replace) && len(stmt.Key) > 0 {
		key := make(Row, len(stmt.Key))
		for _, k := range stmt.Key {
			key[k] = stmt.Values[k]
		}
		rows := m.tables[stmt.Table]
		if i := slices.IndexFunc(rows, func(r Row) bool { return matches(r, key) }); i >= 0 {
			if stmt.IfNotExists {
				return &Result{}
			}
			rows[i] = stmt.Values.Clone()
			return &Result{Applied: true}
		}
	}
	m.tables[stmt.Table] = append(m.tables[stmt.Table], stmt.Values.Clone())
	return &Result{Applied: true}
}

func (m *Memory) updateLocked(stmt Statement) *Result {
	if m.notApplied[stmt.Table] {
		return &Result{}
	}
	applied := false
	for _, r := range m.tables[stmt.Table] {
		if matches(r, stmt.Where) {
			for k, v := range stmt.Values {
				r[k] = v
			}
			applied = true
		}
	}
	return &Result{Applied: applied}
}

func (m *Memory) deleteLocked(stmt Statement) *Result {
	if m.notApplied[stmt.Table] {
		return &Result{}
	}
	rows := m.tables[stmt.Table]
	kept := slices.DeleteFunc(slices.Clone(rows), func(r Row) bool { return matches(r, stmt.Where) })
	m.tables[stmt.Table] = kept
	return &Result{Applied: len(kept) != len(rows)}
}

func (m *Memory) selectLocked(stmt Statement) *Result {
	var rows []Row
	for _, r := range m.tables[stmt.Table] {
		if matches(r, stmt.Where) {
			rows = append(rows, r.Clone())
		}
	}
	if stmt.OrderBy != "" {
		slices.SortStableFunc(rows, func(a, b Row) int {
			c := compareValues(a[stmt.OrderBy], b[stmt.OrderBy])
			if stmt.Desc {
				return -c
			}
			return c
		})
	}
	if stmt.Limit > 0 && len(rows) > stmt.Limit {
		rows = rows[:stmt.Limit]
	}
	return &Result{Rows: rows, Applied: true}
}

func matches(r, where Row) bool {
	for k, want := range where {
		got, ok := r[k]
		if !ok || compareValues(got, want) != 0 {
			return false
		}
	}
	return true
}

// compareValues 比较两个列值，整数类型统一按 int64 比较。
func compareValues(a, b any) int {
	if ai, ok := asInt64(a); ok {
		if bi, ok := asInt64(b); ok {
			return cmp.Compare(ai, bi)
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok && av == bv {
			return 0
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

type memSession struct {
	store     *Memory
	addresses []string
	closed    atomic.Bool
}

func (s *memSession) Execute(ctx context.Context, stmt Statement) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return s.store.execute(stmt)
}

func (s *memSession) Closed() bool { return s.closed.Load() }

func (s *memSession) Close(context.Context) error {
	s.closed.Store(true)
	return nil
}

var (
	_ Driver  = (*Memory)(nil)
	_ Session = (*memSession)(nil)
)
