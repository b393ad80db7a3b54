package xrepo

import (
	"github.com/omeyang/todokit/pkg/async/xreactor"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
	"github.com/omeyang/todokit/pkg/resilience/xhealth"
)

type options struct {
	name    string
	config  Config
	reactor *xreactor.Reactor
	metrics xmetrics.Sink
	health  *xhealth.State
	logger  xlog.Logger
}

// Option 配置 Core。
type Option func(*options)

// WithName 设置仓储名，用于日志组件名与自建反应器名，默认 "repo"。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithConfig 设置配置，默认 DefaultConfig()。
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithReactor 使用外部反应器。外部反应器的生命周期由调用方管理，Close 不会停止它。
func WithReactor(r *xreactor.Reactor) Option {
	return func(o *options) {
		o.reactor = r
	}
}

// WithMetrics 设置指标汇，默认丢弃。
func WithMetrics(sink xmetrics.Sink) Option {
	return func(o *options) {
		o.metrics = sink
	}
}

// WithHealth 设置服务健康标记，默认新建。
func WithHealth(h *xhealth.State) Option {
	return func(o *options) {
		o.health = h
	}
}

// WithLogger 设置日志记录器。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
