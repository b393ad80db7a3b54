package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 表示因收到系统信号而终止。
	ErrSignal = errors.New("xrun: received signal")

	// ErrNilFunc 表示服务函数为 nil。
	ErrNilFunc = errors.New("xrun: nil service func")
)

// SignalError 记录触发终止的信号，errors.Is(err, ErrSignal) 成立。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "xrun: received signal <nil>"
	}
	return fmt.Sprintf("xrun: received signal %s", e.Signal)
}

// Unwrap 返回 ErrSignal。
func (e *SignalError) Unwrap() error { return ErrSignal }
