package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrGuardOpen 表示 CallGuard 处于熔断（或半开限流）状态，调用未执行。
	ErrGuardOpen = errors.New("xbreaker: call guard open")

	// ErrNilFunc 传入的操作函数为 nil。
	ErrNilFunc = errors.New("xbreaker: function cannot be nil")

	// ErrNilContext 传入的 context 为 nil。
	ErrNilContext = errors.New("xbreaker: context cannot be nil")
)

// GuardError 包装 gobreaker 的拒绝错误（ErrOpenState、ErrTooManyRequests）。
type GuardError struct {
	Err   error // 原始错误
	Name  string
	State State
}

func (e *GuardError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("call guard %s (%s): %v", e.Name, e.State, e.Err)
	}
	return e.Err.Error()
}

// Unwrap 暴露原始错误与 ErrGuardOpen。
func (e *GuardError) Unwrap() []error {
	return []error{ErrGuardOpen, e.Err}
}

// Retryable 熔断拒绝不应被重试。
func (e *GuardError) Retryable() bool {
	return false
}

// wrapGuardError 仅包装熔断器自身产生的拒绝错误，业务错误原样返回。
func wrapGuardError(err error, name string, state State) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &GuardError{Err: err, Name: name, State: state}
	}
	return err
}

// IsGuardOpen 判断 err 是否为熔断拒绝。
func IsGuardOpen(err error) bool {
	return errors.Is(err, ErrGuardOpen)
}
