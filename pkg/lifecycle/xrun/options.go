package xrun

import (
	"os"
	"syscall"

	"github.com/omeyang/todokit/pkg/observability/xlog"
)

// Option 配置 Group。
type Option func(*options)

type options struct {
	logger          xlog.Logger
	name            string
	signals         []os.Signal
	noSignalHandler bool
}

func defaultOptions() *options {
	return &options{name: "xrun"}
}

// DefaultSignals 返回默认监听的信号，每次返回新切片。
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// WithLogger 设置日志记录器，默认 xlog.Default()。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置 Group 名称，用于日志。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithSignals 覆盖 Run 监听的信号，空列表等同默认值。
func WithSignals(signals ...os.Signal) Option {
	copied := append([]os.Signal(nil), signals...)
	return func(o *options) {
		o.signals = copied
	}
}

// WithoutSignalHandler 禁用 Run 的信号监听。
func WithoutSignalHandler() Option {
	return func(o *options) {
		o.noSignalHandler = true
	}
}
