package xpool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omeyang/todokit/pkg/observability/xlog"
)

// Option 定义 Pool / Executor 可选配置函数类型。
type Option func(*options)

type options struct {
	logger       xlog.Logger
	name         string
	panicHandler func(recovered any)
}

func defaultOptions() options {
	return options{}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger 设置日志记录器，默认使用 xlog.Default()。传入 nil 将被忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置 pool 名称，用于在多实例场景下区分日志来源。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithPanicHandler 设置任务 panic 时的回调，在日志记录之后调用。
func WithPanicHandler(fn func(recovered any)) Option {
	return func(o *options) {
		o.panicHandler = fn
	}
}

// recovered 记录一次被恢复的 panic。
func (o *options) recovered(r any) {
	xlog.OrDefault(o.logger).Error(context.Background(), "xpool: task panic recovered",
		xlog.Component("xpool"),
		slog.String("pool", o.name),
		slog.String("panic", fmt.Sprint(r)),
	)
	if o.panicHandler != nil {
		o.panicHandler(r)
	}
}
