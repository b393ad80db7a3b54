package xpromise

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/omeyang/todokit/pkg/observability/xlog"
)

// State 表示 Promise 状态。
type State int32

const (
	Pending State = iota
	Resolved
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Result 是 Promise 的类型擦除视图，供组合器使用。
type Result interface {
	// Invoke 启动惰性 Promise 的底层工作，重复调用无副作用。
	Invoke()
	// Subscribe 注册结算回调，语义同 Finally。
	Subscribe(fn func(value any, err error))
	// Done 返回结算后关闭的 channel。
	Done() <-chan struct{}
}

// Promise 是单次赋值的异步结果。
type Promise[T any] struct {
	mu     sync.Mutex
	state  State
	value  T
	err    error
	conts  []func(T, error)
	firing bool
	closed bool
	done   chan struct{}

	setup func(Settler[T])
	once  sync.Once
}

// Settler 是 Promise 的结算句柄。
type Settler[T any] struct {
	p *Promise[T]
}

// Resolve 以 v 结算 Promise，只有第一次结算生效。
func (s Settler[T]) Resolve(v T) bool {
	return s.p.settle(v, nil)
}

// Reject 以 err 结算 Promise，只有第一次结算生效。
// err 为 nil 时使用 ErrRejectedNil 代替，保证 Rejected 状态总有错误。
func (s Settler[T]) Reject(err error) bool {
	if err == nil {
		err = ErrRejectedNil
	}
	var zero T
	return s.p.settle(zero, err)
}

// Settle 根据 err 是否为 nil 选择 Resolve 或 Reject。
func (s Settler[T]) Settle(v T, err error) bool {
	if err != nil {
		return s.Reject(err)
	}
	return s.Resolve(v)
}

func newPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// New 创建 Promise 并立即在当前 goroutine 上运行 setup。
// setup panic 时 Promise 以 ErrPanic 拒绝。
func New[T any](setup func(Settler[T])) *Promise[T] {
	p := Lazy(setup)
	p.Invoke()
	return p
}

// Lazy 创建惰性 Promise，setup 在第一次 Invoke 时运行。
func Lazy[T any](setup func(Settler[T])) *Promise[T] {
	p := newPromise[T]()
	if setup == nil {
		p.setup = func(s Settler[T]) { s.Reject(ErrNilSetup) }
	} else {
		p.setup = setup
	}
	return p
}

// Pend 返回一个未结算的 Promise 及其结算句柄。
func Pend[T any]() (*Promise[T], Settler[T]) {
	p := newPromise[T]()
	p.once.Do(func() {})
	return p, Settler[T]{p: p}
}

// ResolvedWith 返回已以 v 结算的 Promise。
func ResolvedWith[T any](v T) *Promise[T] {
	p, s := Pend[T]()
	s.Resolve(v)
	return p
}

// RejectedWith 返回已以 err 拒绝的 Promise。
func RejectedWith[T any](err error) *Promise[T] {
	p, s := Pend[T]()
	s.Reject(err)
	return p
}

// Invoke 运行惰性 setup，只执行一次。
func (p *Promise[T]) Invoke() {
	p.once.Do(func() {
		setup := p.setup
		p.setup = nil
		if setup == nil {
			return
		}
		s := Settler[T]{p: p}
		defer func() {
			if r := recover(); r != nil {
				s.Reject(panicError("setup", r))
			}
		}()
		setup(s)
	})
}

func (p *Promise[T]) settle(v T, err error) bool {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return false
	}
	if err != nil {
		p.state = Rejected
		p.err = err
	} else {
		p.state = Resolved
		p.value = v
	}
	p.firing = true
	p.drainLocked()
	return true
}

// drainLocked 按注册顺序执行续延，包括执行期间新注册的续延。
// 调用时持有 p.mu，返回时已释放。
func (p *Promise[T]) drainLocked() {
	for {
		batch := p.conts
		p.conts = nil
		if len(batch) == 0 {
			p.firing = false
			if !p.closed {
				p.closed = true
				close(p.done)
			}
			p.mu.Unlock()
			return
		}
		v, err := p.value, p.err
		p.mu.Unlock()
		for _, fn := range batch {
			runContinuation(fn, v, err)
		}
		p.mu.Lock()
	}
}

func runContinuation[T any](fn func(T, error), v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			xlog.Default().Error(context.Background(), "xpromise: continuation panic recovered",
				xlog.Component("xpromise"),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn(v, err)
}

// Finally 注册结算续延，无论成功失败都会执行。
func (p *Promise[T]) Finally(fn func(T, error)) *Promise[T] {
	if fn == nil {
		return p
	}
	p.mu.Lock()
	if p.state == Pending || p.firing {
		p.conts = append(p.conts, fn)
		p.mu.Unlock()
		return p
	}
	v, err := p.value, p.err
	p.mu.Unlock()
	runContinuation(fn, v, err)
	return p
}

// Then 注册成功续延。
func (p *Promise[T]) Then(fn func(T)) *Promise[T] {
	if fn == nil {
		return p
	}
	return p.Finally(func(v T, err error) {
		if err == nil {
			fn(v)
		}
	})
}

// Catch 注册失败续延。
func (p *Promise[T]) Catch(fn func(error)) *Promise[T] {
	if fn == nil {
		return p
	}
	return p.Finally(func(_ T, err error) {
		if err != nil {
			fn(err)
		}
	})
}

// Subscribe 实现 Result。
func (p *Promise[T]) Subscribe(fn func(any, error)) {
	if fn == nil {
		return
	}
	p.Finally(func(v T, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(v, nil)
	})
}

// Done 返回结算且结算前注册的续延全部执行完后关闭的 channel。
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// State 返回当前状态。
func (p *Promise[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Value 返回结算值，未结算或已拒绝时返回零值。
func (p *Promise[T]) Value() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Err 返回拒绝原因，未结算或已成功时返回 nil。
func (p *Promise[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Await 启动 Promise 并阻塞等待结算，ctx 先结束时返回 ctx 错误。
// 仅用于 CLI 与测试等同步边界，反应器任务内不得调用。
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	p.Invoke()
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Map 以 fn 变换 p 的成功值，得到派生 Promise。
// 派生 Promise 的 Invoke 会启动 p；p 拒绝时派生 Promise 以同一错误拒绝。
func Map[T, U any](p *Promise[T], fn func(T) (U, error)) *Promise[U] {
	q := Lazy(func(Settler[U]) { p.Invoke() })
	s := Settler[U]{p: q}
	p.Finally(func(v T, err error) {
		if err != nil {
			s.Reject(err)
			return
		}
		defer func() {
			if r := recover(); r != nil {
				s.Reject(panicError("map", r))
			}
		}()
		s.Settle(fn(v))
	})
	return q
}

// FlatMap 在 p 成功后以 fn 启动下一阶段，派生 Promise 跟随 fn 返回的 Promise 结算。
// fn 返回 nil 时派生 Promise 以 ErrNilSetup 拒绝。
func FlatMap[T, U any](p *Promise[T], fn func(T) *Promise[U]) *Promise[U] {
	q := Lazy(func(Settler[U]) { p.Invoke() })
	s := Settler[U]{p: q}
	p.Finally(func(v T, err error) {
		if err != nil {
			s.Reject(err)
			return
		}
		next, perr := nextStage(fn, v)
		if perr != nil {
			s.Reject(perr)
			return
		}
		next.Finally(func(u U, err error) { s.Settle(u, err) })
		next.Invoke()
	})
	return q
}

func nextStage[T, U any](fn func(T) *Promise[U], v T) (next *Promise[U], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError("flatmap", r)
		}
	}()
	if next = fn(v); next == nil {
		return nil, ErrNilSetup
	}
	return next, nil
}

var _ Result = (*Promise[int])(nil)
