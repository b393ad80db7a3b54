package xclickhouse

import (
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/omeyang/todokit/internal/storageopt"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
)

// SlowQueryInfo 描述一条慢语句。
type SlowQueryInfo = storageopt.SlowQueryInfo

// Option 配置 Driver。
type Option func(*config)

type config struct {
	username string
	password string
	settings clickhouse.Settings
	storage  []storageopt.Option
}

// WithAuth 设置用户名与密码，默认 default 用户、空密码。
func WithAuth(username, password string) Option {
	return func(c *config) {
		c.username = username
		c.password = password
	}
}

// WithSettings 设置会话级 ClickHouse settings。
func WithSettings(settings clickhouse.Settings) Option {
	return func(c *config) {
		c.settings = settings
	}
}

// WithConnectTimeout 设置拨号与首次探活超时。
func WithConnectTimeout(d time.Duration) Option {
	return storage(storageopt.WithConnectTimeout(d))
}

// WithSlowQueryThreshold 设置慢语句阈值，0 禁用。
func WithSlowQueryThreshold(d time.Duration) Option {
	return storage(storageopt.WithSlowQueryThreshold(d))
}

// WithSlowQueryHook 设置同步慢语句钩子。
func WithSlowQueryHook(hook storageopt.SlowQueryHook) Option {
	return storage(storageopt.WithSlowQueryHook(hook))
}

// WithAsyncSlowQueryHook 设置异步慢语句钩子。
func WithAsyncSlowQueryHook(hook storageopt.AsyncSlowQueryHook, workers, queueSize int) Option {
	return storage(storageopt.WithAsyncSlowQueryHook(hook, workers, queueSize))
}

// WithObserver 设置观测接口。
func WithObserver(observer xmetrics.Observer) Option {
	return storage(storageopt.WithObserver(observer))
}

// WithLogger 设置日志器。
func WithLogger(logger xlog.Logger) Option {
	return storage(storageopt.WithLogger(logger))
}

func storage(opt storageopt.Option) Option {
	return func(c *config) {
		c.storage = append(c.storage, opt)
	}
}
