package storageopt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/util/xpool"
)

// SlowQueryInfo 描述一条慢语句。
type SlowQueryInfo struct {
	Driver    string
	Statement string // 如 "insert Todo"
	Duration  time.Duration
	Err       error
}

// SlowQueryHook 在请求路径上同步执行，耗时操作会直接增加语句延迟。
type SlowQueryHook func(ctx context.Context, info SlowQueryInfo)

// AsyncSlowQueryHook 由 worker pool 异步执行。
// 不接收 context，异步执行时原始 context 可能已取消。
type AsyncSlowQueryHook func(info SlowQueryInfo)

// 异步钩子 pool 默认值。
const (
	DefaultAsyncWorkerPoolSize = 4
	DefaultAsyncQueueSize      = 1000
)

// SlowQueryDetector 按阈值触发慢语句钩子。
type SlowQueryDetector struct {
	threshold time.Duration
	syncHook  SlowQueryHook

	mu     sync.RWMutex
	pool   *xpool.Pool[SlowQueryInfo]
	closed bool
}

// NewSlowQueryDetector 根据 o 创建检测器。
// 设置了异步钩子时立即创建 pool，参数越界直接返回错误。
func NewSlowQueryDetector(o Options) (*SlowQueryDetector, error) {
	d := &SlowQueryDetector{threshold: o.SlowQueryThreshold, syncHook: o.SlowQueryHook}
	if o.AsyncSlowQueryHook == nil {
		return d, nil
	}
	pool, err := xpool.New(o.AsyncSlowQueryWorkers, o.AsyncSlowQueryQueueSize, o.AsyncSlowQueryHook,
		xpool.WithLogger(o.Logger), xpool.WithName("storageopt.slowquery"))
	if err != nil {
		return nil, fmt.Errorf("storageopt: create async pool: %w", err)
	}
	d.pool = pool
	return d, nil
}

// MaybeSlowQuery 在 duration >= 阈值时触发钩子，返回是否触发。
// 阈值为 0 时禁用检测。异步队列满时丢弃通知。
func (d *SlowQueryDetector) MaybeSlowQuery(ctx context.Context, info SlowQueryInfo) bool {
	if d.threshold <= 0 || info.Duration < d.threshold {
		return false
	}
	if d.syncHook != nil {
		d.syncHook(ctx, info)
	}
	d.mu.RLock()
	if !d.closed && d.pool != nil {
		_ = d.pool.Submit(info)
	}
	d.mu.RUnlock()
	return true
}

// Close 关闭异步 pool 并等待已排队的通知执行完，重复调用安全。
func (d *SlowQueryDetector) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pool := d.pool
	d.pool = nil
	d.mu.Unlock()

	// pool 在锁外排空，避免阻塞并发的 MaybeSlowQuery
	if pool != nil {
		if err := pool.Close(); err != nil {
			xlog.Default().Warn(context.Background(), "storageopt: close slow query pool", xlog.Err(err))
		}
	}
}
