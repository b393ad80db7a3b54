package xpool

import (
	"context"
	"sync"
	"sync/atomic"
)

const (
	maxWorkers   = 1 << 16
	maxQueueSize = 1 << 24
)

// Stats 是 pool 的运行计数快照。
type Stats struct {
	Executed int64 // 已执行完成的任务（含 panic 的任务）
	Dropped  int64 // 因队列满或已关闭被拒绝的任务
	Panics   int64 // 被恢复的 panic 次数
	Pending  int   // 当前队列中等待的任务
}

// Pool 是泛型的有界队列 worker pool。
type Pool[T any] struct {
	opts    options
	handler func(T)
	queue   chan T
	wg      sync.WaitGroup

	// mu 保护 closed 与 queue 的关闭，避免 Submit 与 Shutdown 并发时向已关闭 channel 发送。
	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	executed atomic.Int64
	dropped  atomic.Int64
	panics   atomic.Int64
}

// New 创建并启动 pool。
//
// workers 取值 [1, 65536]，queueSize 取值 [1, 16777216]，超出范围返回错误。
func New[T any](workers, queueSize int, handler func(T), opts ...Option) (*Pool[T], error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if workers < 1 || workers > maxWorkers {
		return nil, ErrInvalidWorkers
	}
	if queueSize < 1 || queueSize > maxQueueSize {
		return nil, ErrInvalidQueueSize
	}
	p := &Pool[T]{
		opts:    applyOptions(opts),
		handler: handler,
		queue:   make(chan T, queueSize),
		done:    make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return p, nil
}

// worker 只从 queue 读取直到 channel 关闭，保证关闭时处理完剩余任务。
func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool[T]) run(task T) {
	defer func() {
		p.executed.Add(1)
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.opts.recovered(r)
		}
	}()
	p.handler(task)
}

// Submit 非阻塞地提交任务。
// 队列满时返回 ErrQueueFull，pool 已关闭时返回 ErrPoolStopped。
func (p *Pool[T]) Submit(task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return ErrPoolStopped
	}
	select {
	case p.queue <- task:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close 等价于 Shutdown(context.Background())。
func (p *Pool[T]) Close() error {
	return p.Shutdown(context.Background())
}

// Shutdown 停止接收新任务并等待队列耗尽。
// ctx 到期时立即返回 ctx 错误，残留 worker 在后台继续处理，可通过 Done 等待。
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done 返回在所有 worker 退出后关闭的 channel。
func (p *Pool[T]) Done() <-chan struct{} {
	return p.done
}

// Stats 返回运行计数快照。
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Executed: p.executed.Load(),
		Dropped:  p.dropped.Load(),
		Panics:   p.panics.Load(),
		Pending:  len(p.queue),
	}
}
