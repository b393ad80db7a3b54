package xpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrExecutorOverload 表示阻塞执行器已达容量上限。
var ErrExecutorOverload = errors.New("xpool: executor overloaded")

// Executor 是执行阻塞任务的有界 goroutine 池。
type Executor struct {
	pool *ants.Pool
	opts options
}

// NewExecutor 创建容量为 size 的阻塞执行器。
//
// 执行器为非阻塞模式：容量耗尽时 Go 立即返回 ErrExecutorOverload，调用方不会被挂起。
func NewExecutor(size int, opts ...Option) (*Executor, error) {
	if size < 1 || size > maxWorkers {
		return nil, ErrInvalidWorkers
	}
	e := &Executor{opts: applyOptions(opts)}
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(30*time.Second),
		ants.WithPanicHandler(e.opts.recovered),
	)
	if err != nil {
		return nil, fmt.Errorf("xpool: create executor: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Go 在执行器中运行 fn。执行器已关闭时返回 ErrPoolStopped。
func (e *Executor) Go(fn func()) error {
	err := e.pool.Submit(fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolStopped
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrExecutorOverload
	default:
		return fmt.Errorf("xpool: submit: %w", err)
	}
}

// Running 返回正在运行的任务数。
func (e *Executor) Running() int {
	return e.pool.Running()
}

// Cap 返回执行器容量。
func (e *Executor) Cap() int {
	return e.pool.Cap()
}

// Shutdown 关闭执行器并等待运行中的任务结束，ctx 到期时返回 ctx 错误。
func (e *Executor) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	timeout := time.Minute
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		e.pool.Release()
		return ctx.Err()
	}
	if err := e.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("xpool: release executor: %w", err)
	}
	return nil
}
