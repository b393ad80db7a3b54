package xreactor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/omeyang/todokit/pkg/async/xpromise"
)

// All 在所有输入成功后以输入顺序的值结算。
//
// 任一输入拒绝时立即以该错误拒绝，不再等待其他输入；
// timeout > 0 且预算耗尽时以 ErrTimeout 拒绝。无输入时立即以空切片结算。
func (r *Reactor) All(timeout time.Duration, results ...xpromise.Result) *xpromise.Promise[[]any] {
	p, s := xpromise.Pend[[]any]()
	if len(results) == 0 {
		s.Resolve([]any{})
		return p
	}
	r.guardTimeout(p, "all", timeout, func(err error) { s.Reject(err) })

	agg := &allState{values: make([]any, len(results)), remaining: len(results)}
	for i, res := range results {
		res.Subscribe(func(v any, err error) {
			if err != nil {
				s.Reject(err)
				return
			}
			if values, done := agg.set(i, v); done {
				s.Resolve(values)
			}
		})
		res.Invoke()
	}
	return p
}

// Any 以第一个成功输入的值结算。
//
// 全部输入失败时以各输入错误（按输入顺序 errors.Join）拒绝；
// timeout > 0 且预算耗尽时以 ErrTimeout 拒绝。无输入时立即拒绝。
func (r *Reactor) Any(timeout time.Duration, results ...xpromise.Result) *xpromise.Promise[any] {
	p, s := xpromise.Pend[any]()
	if len(results) == 0 {
		s.Reject(xpromise.NewError("any", ErrRejected, "no inputs", nil))
		return p
	}
	r.guardTimeout(p, "any", timeout, func(err error) { s.Reject(err) })

	agg := &anyState{errs: make([]error, len(results)), remaining: len(results)}
	for i, res := range results {
		res.Subscribe(func(v any, err error) {
			if err == nil {
				s.Resolve(v)
				return
			}
			if errs, done := agg.fail(i, err); done {
				s.Reject(errors.Join(errs...))
			}
		})
		res.Invoke()
	}
	return p
}

// AllOf 是 All 的类型化版本。
func AllOf[T any](r *Reactor, timeout time.Duration, promises ...*xpromise.Promise[T]) *xpromise.Promise[[]T] {
	all := r.All(timeout, erase(promises)...)
	return xpromise.Map(all, func(values []any) ([]T, error) {
		out := make([]T, len(values))
		for i, v := range values {
			out[i], _ = v.(T)
		}
		return out, nil
	})
}

// AnyOf 是 Any 的类型化版本。
func AnyOf[T any](r *Reactor, timeout time.Duration, promises ...*xpromise.Promise[T]) *xpromise.Promise[T] {
	return xpromise.Map(r.Any(timeout, erase(promises)...), func(v any) (T, error) {
		out, _ := v.(T)
		return out, nil
	})
}

func erase[T any](promises []*xpromise.Promise[T]) []xpromise.Result {
	out := make([]xpromise.Result, len(promises))
	for i, p := range promises {
		out[i] = p
	}
	return out
}

// guardTimeout 为组合结果注册超时，组合结果结算后取消计时。
func (r *Reactor) guardTimeout(p interface{ Subscribe(func(any, error)) }, op string, timeout time.Duration, reject func(error)) {
	if timeout <= 0 {
		return
	}
	cancel := r.RunAfter(timeout, func() {
		reject(xpromise.NewError(op, ErrTimeout, fmt.Sprintf("timed out after %s", timeout), nil))
	})
	p.Subscribe(func(any, error) { cancel() })
}

type allState struct {
	mu        sync.Mutex
	values    []any
	remaining int
}

func (a *allState) set(i int, v any) ([]any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[i] = v
	a.remaining--
	return a.values, a.remaining == 0
}

type anyState struct {
	mu        sync.Mutex
	errs      []error
	remaining int
}

func (a *anyState) fail(i int, err error) ([]error, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs[i] = err
	a.remaining--
	return a.errs, a.remaining == 0
}
