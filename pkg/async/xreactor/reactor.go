package xreactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
	"github.com/omeyang/todokit/pkg/util/xpool"
)

// Cancel 取消已调度的任务，可重复调用。
type Cancel func()

// Stats 是反应器运行计数快照。
type Stats struct {
	Executed  int64 // 已执行的任务体
	Dropped   int64 // 因队列满或已停止被丢弃的任务
	Panics    int64 // 任务体 panic 次数
	Repeating int   // 当前已注册的周期任务
	Delayed   int   // 当前等待触发的延时任务
	Blocking  int   // 正在运行的阻塞任务
}

// Reactor 是协作式任务反应器。
type Reactor struct {
	opts    *options
	logger  xlog.Logger
	metrics xmetrics.Sink

	serial *xpool.Pool[func()]
	exec   *xpool.Executor
	cron   *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	nextID  uint64
	started bool
	stopped bool

	panics atomic.Int64
}

// New 创建反应器，需调用 Start 后周期任务才开始计时。
// 串行上下文与阻塞执行器创建即可用，Defer / Blocking 在 Start 前也能执行。
func New(opts ...Option) (*Reactor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	r := &Reactor{
		opts:    o,
		logger:  xlog.OrDefault(o.logger).With(xlog.Component(o.name)),
		metrics: xmetrics.OrNop(o.metrics),
		timers:  make(map[uint64]*time.Timer),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	serial, err := xpool.New(1, o.queueSize, r.runTask,
		xpool.WithLogger(r.logger), xpool.WithName(o.name+".serial"))
	if err != nil {
		r.cancel()
		return nil, fmt.Errorf("xreactor: create serial context: %w", err)
	}
	exec, err := xpool.NewExecutor(o.blockingWorkers,
		xpool.WithLogger(r.logger), xpool.WithName(o.name+".blocking"))
	if err != nil {
		r.cancel()
		_ = serial.Close()
		return nil, fmt.Errorf("xreactor: create blocking executor: %w", err)
	}
	r.serial = serial
	r.exec = exec

	cl := cronLogger{logger: r.logger}
	r.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	return r, nil
}

// Start 启动周期任务调度，幂等。
func (r *Reactor) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	r.cron.Start()
}

// Stop 停止调度并等待串行队列与阻塞任务结束，ctx 到期时返回 ctx 错误。
func (r *Reactor) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.mu.Unlock()

	var errs []error
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	r.cancel()
	if err := r.exec.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := r.serial.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Context 返回反应器的基础 context，Stop 时取消。
func (r *Reactor) Context() context.Context {
	return r.ctx
}

func (r *Reactor) runTask(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.panics.Add(1)
			r.logger.Error(r.ctx, "xreactor: task panic recovered", slog.String("panic", fmt.Sprint(rec)))
		}
	}()
	task()
}

// post 把任务投递到串行上下文。
func (r *Reactor) post(task func()) error {
	if err := r.serial.Submit(task); err != nil {
		r.metrics.Increment("reactor.task.dropped")
		if errors.Is(err, xpool.ErrPoolStopped) {
			return ErrStopped
		}
		r.logger.Warn(r.ctx, "xreactor: serial queue full, task dropped")
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return nil
}

// Defer 在下一个可用回合执行 task。
func (r *Reactor) Defer(task func()) error {
	if task == nil {
		return ErrNilTask
	}
	return r.post(task)
}

// RunAfter 在至少 delay 之后执行一次 task。
func (r *Reactor) RunAfter(delay time.Duration, task func()) Cancel {
	if task == nil {
		return func() {}
	}
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return func() {}
	}
	r.nextID++
	id := r.nextID
	r.timers[id] = time.AfterFunc(delay, func() {
		if r.removeTimer(id) {
			_ = r.post(task)
		}
	})
	r.mu.Unlock()

	return onceCancel(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if t, ok := r.timers[id]; ok {
			t.Stop()
			delete(r.timers, id)
		}
	})
}

// removeTimer 移除已触发的延时任务，返回任务是否仍然有效（未被取消）。
func (r *Reactor) removeTimer(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.timers[id]; !ok {
		return false
	}
	delete(r.timers, id)
	return true
}

// Repeating 每隔 interval 执行 task，首次执行不早于注册后一个 interval。
// 上一轮发起的异步工作尚未结算时，新一轮照常触发。
func (r *Reactor) Repeating(interval time.Duration, task func()) Cancel {
	if task == nil || interval <= 0 {
		return func() {}
	}
	id := r.cron.Schedule(intervalSchedule{every: interval}, cron.FuncJob(func() {
		_ = r.post(task)
	}))
	return onceCancel(func() { r.cron.Remove(id) })
}

// Stats 返回运行计数快照。
func (r *Reactor) Stats() Stats {
	ps := r.serial.Stats()
	r.mu.Lock()
	delayed := len(r.timers)
	r.mu.Unlock()
	return Stats{
		Executed:  ps.Executed,
		Dropped:   ps.Dropped,
		Panics:    r.panics.Load(),
		Repeating: len(r.cron.Entries()),
		Delayed:   delayed,
		Blocking:  r.exec.Running(),
	}
}

// Blocking 在阻塞执行器上运行 fn，并在反应器串行上下文中结算返回的 Promise。
// fn 收到的 context 在反应器停止时取消。
func Blocking[T any](r *Reactor, fn func(ctx context.Context) (T, error)) *xpromise.Promise[T] {
	p, s := xpromise.Pend[T]()
	if fn == nil {
		s.Reject(ErrNilTask)
		return p
	}
	err := r.exec.Go(func() {
		v, err := callBlocking(r.ctx, fn)
		// 反应器已停止或队列满时就地结算，保证 Promise 不会悬空
		if postErr := r.post(func() { s.Settle(v, err) }); postErr != nil {
			s.Settle(v, err)
		}
	})
	if err != nil {
		if errors.Is(err, xpool.ErrPoolStopped) {
			s.Reject(ErrStopped)
		} else {
			s.Reject(fmt.Errorf("%w: %w", ErrRejected, err))
		}
	}
	return p
}

func callBlocking[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = xpromise.NewError("blocking", xpromise.ErrPanic, fmt.Sprint(rec), nil)
		}
	}()
	return fn(ctx)
}

func onceCancel(fn func()) Cancel {
	var once sync.Once
	return func() { once.Do(fn) }
}
