package xrun

import (
	"context"
	"errors"
	"time"
)

// Named 为服务附加名称，名称出现在错误信息中。
func Named(name string, fn Service) Service {
	return func(ctx context.Context) error {
		if fn == nil {
			return ErrNilFunc
		}
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return &serviceError{name: name, err: err}
		}
		return nil
	}
}

type serviceError struct {
	name string
	err  error
}

func (e *serviceError) Error() string { return e.name + ": " + e.err.Error() }
func (e *serviceError) Unwrap() error { return e.err }

// Lifecycle 把"启动后常驻、取消时限时关闭"的组件适配为服务。
// start 为 nil 时跳过；stop 使用独立于 ctx 的 stopTimeout，非正数表示不限时。
func Lifecycle(name string, start func(), stop func(context.Context) error, stopTimeout time.Duration) Service {
	return Named(name, func(ctx context.Context) error {
		if start != nil {
			start()
		}
		<-ctx.Done()
		if stop == nil {
			return nil
		}
		stopCtx := context.WithoutCancel(ctx)
		if stopTimeout > 0 {
			var cancel context.CancelFunc
			stopCtx, cancel = context.WithTimeout(stopCtx, stopTimeout)
			defer cancel()
		}
		return stop(stopCtx)
	})
}

// Stopper 是可停止的后台组件，如配置监视器。
type Stopper interface {
	Stop() error
}

// Until 在 ctx 取消后停止 s。
func Until(name string, s Stopper) Service {
	return Named(name, func(ctx context.Context) error {
		if s == nil {
			return ErrNilFunc
		}
		<-ctx.Done()
		return s.Stop()
	})
}
