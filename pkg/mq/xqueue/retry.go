package xqueue

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/omeyang/todokit/pkg/observability/xlog"
)

// RetryOption 配置 Retrying。
type RetryOption func(*retrying)

// WithRetryLogger 设置重试日志器。
func WithRetryLogger(logger xlog.Logger) RetryOption {
	return func(r *retrying) {
		r.logger = logger
	}
}

type retrying struct {
	next     Enqueuer
	attempts uint
	delay    time.Duration
	logger   xlog.Logger
}

// Retrying 以固定间隔重试投递，attempts 为总尝试次数（至少 1）。
// 参数错误（ErrEmptyTopic）与 ctx 取消不重试。
func Retrying(next Enqueuer, attempts int, delay time.Duration, opts ...RetryOption) Enqueuer {
	if attempts < 1 {
		attempts = 1
	}
	r := &retrying{next: next, attempts: uint(attempts), delay: delay}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = xlog.OrDefault(r.logger)
	return r
}

func (r *retrying) Enqueue(ctx context.Context, item Item) error {
	if r.next == nil {
		return ErrNilEnqueuer
	}
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrEmptyTopic) && !errors.Is(err, ErrClosed) &&
				!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn(ctx, "xqueue: enqueue retry",
				xlog.Count(int64(n)+1), xlog.Err(err))
		}),
	).Do(func() error {
		return r.next.Enqueue(ctx, item)
	})
}
