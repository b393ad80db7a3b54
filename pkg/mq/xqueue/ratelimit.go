package xqueue

import (
	"context"
	"fmt"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

type rateLimited struct {
	next    Enqueuer
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// RateLimited 按主题做分布式限流，超出 limit 时返回 ErrRateLimited，不排队等待。
func RateLimited(next Enqueuer, client redis.UniversalClient, limit redis_rate.Limit) Enqueuer {
	return &rateLimited{
		next:    next,
		limiter: redis_rate.NewLimiter(client),
		limit:   limit,
		prefix:  "todokit:ratelimit:",
	}
}

func (r *rateLimited) Enqueue(ctx context.Context, item Item) error {
	if r.next == nil {
		return ErrNilEnqueuer
	}
	res, err := r.limiter.Allow(ctx, r.prefix+item.Topic, r.limit)
	if err != nil {
		return fmt.Errorf("xqueue: rate limit check: %w", err)
	}
	if res.Allowed == 0 {
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, res.RetryAfter)
	}
	return r.next.Enqueue(ctx, item)
}
