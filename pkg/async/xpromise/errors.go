package xpromise

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPanic 表示 setup 或映射函数发生 panic。
	ErrPanic = errors.New("xpromise: panic")

	// ErrRejectedNil 表示以 nil 错误拒绝。
	ErrRejectedNil = errors.New("xpromise: rejected with nil error")

	// ErrNilSetup 表示 setup 函数为 nil。
	ErrNilSetup = errors.New("xpromise: nil setup")
)

// Error 是 Promise 拒绝时携带的结构化错误。
type Error struct {
	Op    string // 操作名，如 "add.todo"
	Kind  error  // 分类哨兵错误
	Msg   string // 可读消息
	Cause error  // 底层原因
}

// NewError 创建 *Error。
func NewError(op string, kind error, msg string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	default:
		b.WriteString("failed")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap 同时暴露分类与原因。
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// KindOf 返回 err 链中第一个 *Error 的分类，没有时返回 nil。
func KindOf(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return nil
}

func panicError(op string, r any) error {
	return NewError(op, ErrPanic, fmt.Sprint(r), nil)
}
