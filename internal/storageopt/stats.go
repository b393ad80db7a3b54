package storageopt

import "sync/atomic"

// Stats 是驱动会话的语句计数快照。
type Stats struct {
	Statements int64 // 已执行语句
	Errors     int64 // 返回错误的语句
	NotApplied int64 // 执行成功但未生效的写入
	Slow       int64 // 慢语句
	Pings      int64 // 探活次数
	PingErrors int64 // 探活失败次数
}

// Counters 是 Stats 的原子计数器。
type Counters struct {
	statements atomic.Int64
	errors     atomic.Int64
	notApplied atomic.Int64
	slow       atomic.Int64
	pings      atomic.Int64
	pingErrors atomic.Int64
}

// IncPing 记录一次探活，failed 表示探活失败。
func (c *Counters) IncPing(failed bool) {
	c.pings.Add(1)
	if failed {
		c.pingErrors.Add(1)
	}
}

// Snapshot 返回当前计数。
func (c *Counters) Snapshot() Stats {
	return Stats{
		Statements: c.statements.Load(),
		Errors:     c.errors.Load(),
		NotApplied: c.notApplied.Load(),
		Slow:       c.slow.Load(),
		Pings:      c.pings.Load(),
		PingErrors: c.pingErrors.Load(),
	}
}
