package xrepo

import (
	"context"
	"errors"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/async/xreactor"
	"github.com/omeyang/todokit/pkg/resilience/xbreaker"
)

var (
	// ErrNotConnected 表示操作时 Breaker 不可用。
	ErrNotConnected = errors.New("xrepo: not connected")

	// ErrStoreOperation 表示存储调用失败。
	ErrStoreOperation = errors.New("xrepo: store operation failed")

	// ErrDiscovery 表示服务发现失败。
	ErrDiscovery = errors.New("xrepo: service discovery failed")

	// ErrReconnect 表示连接或初始化失败。
	ErrReconnect = errors.New("xrepo: reconnect failed")

	// ErrTimeout 表示组合器时间预算耗尽。
	ErrTimeout = xreactor.ErrTimeout

	// ErrInvariant 表示存储未报错但写入未生效。
	ErrInvariant = errors.New("xrepo: invariant violation")

	// ErrClosed 表示仓储已关闭。
	ErrClosed = errors.New("xrepo: repository closed")

	// ErrNilDriver 表示未提供存储驱动。
	ErrNilDriver = errors.New("xrepo: driver cannot be nil")

	// ErrNilDiscovery 表示未提供服务发现。
	ErrNilDiscovery = errors.New("xrepo: discovery cannot be nil")

	// ErrInvalidConfig 表示配置非法。
	ErrInvalidConfig = errors.New("xrepo: invalid config")
)

// ErrorKind 返回用于指标名的错误分类。
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, xbreaker.ErrGuardOpen):
		return "guard.open"
	case errors.Is(err, ErrNotConnected):
		return "not.connected"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	case errors.Is(err, ErrDiscovery):
		return "discovery"
	case errors.Is(err, ErrReconnect):
		return "reconnect"
	case errors.Is(err, xpromise.ErrPanic):
		return "panic"
	default:
		return "store"
	}
}
