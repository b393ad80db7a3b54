package xmongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/todokit/internal/storageopt"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
)

// SlowQueryInfo 描述一条慢语句。
type SlowQueryInfo = storageopt.SlowQueryInfo

// Option 配置 Driver。
type Option func(*config)

type config struct {
	storage []storageopt.Option
	client  []func(*options.ClientOptions)
}

// WithAuth 设置用户名密码认证，authSource 为空时使用 admin。
func WithAuth(username, password, authSource string) Option {
	return func(c *config) {
		c.client = append(c.client, func(o *options.ClientOptions) {
			if authSource == "" {
				authSource = "admin"
			}
			o.SetAuth(options.Credential{Username: username, Password: password, AuthSource: authSource})
		})
	}
}

// WithClientOptions 直接修改底层 ClientOptions（副本集、TLS 等）。
// Hosts 由 Connect 的参数覆盖。
func WithClientOptions(fn func(*options.ClientOptions)) Option {
	return func(c *config) {
		if fn != nil {
			c.client = append(c.client, fn)
		}
	}
}

// WithConnectTimeout 设置连接与首次探活超时。
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
