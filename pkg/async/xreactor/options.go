package xreactor

import (
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
)

const (
	defaultQueueSize       = 4096
	defaultBlockingWorkers = 64
)

type options struct {
	name            string
	logger          xlog.Logger
	metrics         xmetrics.Sink
	queueSize       int
	blockingWorkers int
}

func defaultOptions() *options {
	return &options{
		name:            "reactor",
		queueSize:       defaultQueueSize,
		blockingWorkers: defaultBlockingWorkers,
	}
}

// Option 定义 Reactor 配置选项。
type Option func(*options)

// WithName 设置反应器名称，用于日志。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger 设置日志记录器，默认 xlog.Default()。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics 设置指标 Sink，用于记录被丢弃的任务（reactor.task.dropped）。
func WithMetrics(sink xmetrics.Sink) Option {
	return func(o *options) {
		o.metrics = sink
	}
}

// WithQueueSize 设置串行队列容量，默认 4096。
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithBlockingWorkers 设置阻塞执行器容量，默认 64。
func WithBlockingWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockingWorkers = n
		}
	}
}
