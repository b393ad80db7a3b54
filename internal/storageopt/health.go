package storageopt

import (
	"context"
	"time"
)

const (
	// DefaultConnectTimeout 是驱动建立连接并完成首次探活的默认超时。
	DefaultConnectTimeout = 10 * time.Second

	// DefaultPingTimeout 是 Instrumenter.Ping 单次探活的默认超时。
	DefaultPingTimeout = 2 * time.Second
)

// BoundedContext 为 ctx 附加超时。timeout <= 0 时原样返回 ctx。
//
//	ctx, cancel := storageopt.BoundedContext(ctx, timeout)
//	defer cancel()
func BoundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
