package storageopt

import (
	"time"

	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
)

// Options 是驱动的通用配置。
type Options struct {
	// ConnectTimeout 限制 Connect 内建立连接与首次探活的总时长。
	ConnectTimeout time.Duration

	// PingTimeout 限制 Instrumenter.Ping 的单次探活时长，Session.Closed 只读状态不探活。
	PingTimeout time.Duration

	// SlowQueryThreshold 为 0 时禁用慢语句检测。
	SlowQueryThreshold time.Duration

	SlowQueryHook           SlowQueryHook
	AsyncSlowQueryHook      AsyncSlowQueryHook
	AsyncSlowQueryWorkers   int
	AsyncSlowQueryQueueSize int

	Observer xmetrics.Observer
	Logger   xlog.Logger
}

// Option 修改 Options。
type Option func(*Options)

// DefaultOptions 返回默认配置。
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:          DefaultConnectTimeout,
		PingTimeout:             DefaultPingTimeout,
		AsyncSlowQueryWorkers:   DefaultAsyncWorkerPoolSize,
		AsyncSlowQueryQueueSize: DefaultAsyncQueueSize,
		Observer:                xmetrics.NoopObserver{},
	}
}

// Apply 在默认配置上依次应用 opts。
func Apply(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.Logger = xlog.OrDefault(o.Logger)
	return o
}

// WithConnectTimeout 设置连接超时，非正值忽略。
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConnectTimeout = d
		}
	}
}

// WithPingTimeout 设置探活超时，非正值忽略。
func WithPingTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PingTimeout = d
		}
	}
}

// WithSlowQueryThreshold 设置慢语句阈值，0 禁用。
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(o *Options) {
		o.SlowQueryThreshold = d
	}
}

// WithSlowQueryHook 设置同步慢语句钩子。
func WithSlowQueryHook(hook SlowQueryHook) Option {
	return func(o *Options) {
		o.SlowQueryHook = hook
	}
}

// WithAsyncSlowQueryHook 设置异步慢语句钩子及其 pool 规模，非正值使用默认值。
func WithAsyncSlowQueryHook(hook AsyncSlowQueryHook, workers, queueSize int) Option {
	return func(o *Options) {
		o.AsyncSlowQueryHook = hook
		if workers > 0 {
			o.AsyncSlowQueryWorkers = workers
		}
		if queueSize > 0 {
			o.AsyncSlowQueryQueueSize = queueSize
		}
	}
}

// WithObserver 设置观测接口。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithLogger 设置日志器。
func WithLogger(logger xlog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}
