package xbreaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/omeyang/todokit/pkg/observability/xlog"
)

// Breaker 是 Open / Operational 两态的断路器。
//
// 零值等价于 Open。Breaker 创建后不可变（除判定锁存与清理标记外），
// 状态转换通过 Holder 替换整个 Breaker 完成。
type Breaker[T any] struct {
	operational    bool
	resource       T
	errorThreshold int64
	isBroken       func(T) bool

	latched atomic.Bool // 判定函数曾返回 true
	cleaned atomic.Bool

	// origin 非空时本值是链式调用的判定视图，判定固定为 pinnedBroken。
	origin       *Breaker[T]
	pinnedBroken bool
}

// Open 返回不持有资源的 Breaker。
func Open[T any]() *Breaker[T] {
	return &Breaker[T]{}
}

// Operational 返回持有 resource 的 Breaker。
//
// isBroken 返回 true 表示资源已退化，为 nil 时视为永不退化。
// errorThreshold 供判定函数与调用方读取。
func Operational[T any](resource T, errorThreshold int64, isBroken func(T) bool) *Breaker[T] {
	if isBroken == nil {
		isBroken = func(T) bool { return false }
	}
	return &Breaker[T]{
		operational:    true,
		resource:       resource,
		errorThreshold: errorThreshold,
		isBroken:       isBroken,
	}
}

// IsOpen 报告是否为 Open 状态（不持有资源）。
func (b *Breaker[T]) IsOpen() bool {
	return b == nil || !b.operational
}

// IsBroken 报告 Breaker 是否不可用：Open，或判定函数认为资源已退化。
func (b *Breaker[T]) IsBroken() bool {
	if b.IsOpen() {
		return true
	}
	if b.origin != nil {
		return b.pinnedBroken
	}
	if b.latched.Load() {
		return true
	}
	if b.evaluate() {
		b.latched.Store(true)
		return true
	}
	return false
}

// evaluate 执行判定函数，panic 视为退化。
func (b *Breaker[T]) evaluate() (broken bool) {
	defer func() {
		if r := recover(); r != nil {
			xlog.Default().Error(context.Background(), "xbreaker: health predicate panic",
				xlog.Component("xbreaker"), slog.String("panic", fmt.Sprint(r)))
			broken = true
		}
	}()
	return b.isBroken(b.resource)
}

// IsOperational 报告 Breaker 是否可用，恒等于 !IsBroken()。
func (b *Breaker[T]) IsOperational() bool {
	return !b.IsBroken()
}

// ErrorThreshold 返回错误阈值，Open 状态返回 0。
func (b *Breaker[T]) ErrorThreshold() int64 {
	if b.IsOpen() {
		return 0
	}
	return b.errorThreshold
}

// Match 基于一次判定选择分支：不可用时调用 onBroken，否则以资源调用 onOperational。
// 两个分支恰好执行一个，nil 分支视为空操作。
func (b *Breaker[T]) Match(onBroken func(), onOperational func(T)) {
	if b.IsBroken() {
		if onBroken != nil {
			onBroken()
		}
		return
	}
	if onOperational != nil {
		onOperational(b.resource)
	}
}

// IfBroken 在 Breaker 不可用时调用 fn，返回固定了本次判定的视图以便链式调用。
//
// 同一条链上的 IfBroken / IfOperational 共用第一次判定，恰好执行一个分支。
// 视图的 Cleanup 作用于原 Breaker。
func (b *Breaker[T]) IfBroken(fn func()) *Breaker[T] {
	v := b.pin()
	v.Match(fn, nil)
	return v
}

// IfOperational 在 Breaker 可用时以资源调用 fn，返回固定了本次判定的视图以便链式调用。
func (b *Breaker[T]) IfOperational(fn func(T)) *Breaker[T] {
	v := b.pin()
	v.Match(nil, fn)
	return v
}

// pin 返回判定固定的视图，Open 与已固定的视图原样返回。
func (b *Breaker[T]) pin() *Breaker[T] {
	if b.IsOpen() || b.origin != nil {
		return b
	}
	return &Breaker[T]{
		operational:    true,
		resource:       b.resource,
		errorThreshold: b.errorThreshold,
		isBroken:       b.isBroken,
		origin:         b,
		pinnedBroken:   b.IsBroken(),
	}
}

// Cleanup 释放持有的资源（包括已退化的资源），每个 Breaker 只释放一次。
// release 返回的错误或 panic 只记录日志，不向调用方传播。返回是否执行了 release。
func (b *Breaker[T]) Cleanup(release func(T) error) bool {
	if b != nil && b.origin != nil {
		return b.origin.Cleanup(release)
	}
	if b.IsOpen() || release == nil {
		return false
	}
	if !b.cleaned.CompareAndSwap(false, true) {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			xlog.Default().Error(context.Background(), "xbreaker: release panic recovered",
				xlog.Component("xbreaker"), slog.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := release(b.resource); err != nil {
		xlog.Default().Warn(context.Background(), "xbreaker: release resource failed",
			xlog.Component("xbreaker"), xlog.Err(err))
	}
	return true
}

// String 返回状态名。
func (b *Breaker[T]) String() string {
	switch {
	case b.IsOpen():
		return "open"
	case b.origin != nil:
		return b.origin.String()
	case b.latched.Load():
		return "operational(broken)"
	default:
		return "operational"
	}
}
