package xqueue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis Streams 消息字段名。
const (
	FieldKey     = "key"
	FieldPayload = "payload"
	fieldHeader  = "h:"
)

// RedisOption 配置 RedisStream。
type RedisOption func(*RedisStream)

// WithStreamPrefix 设置 stream 名前缀，stream 名为 prefix + topic。
func WithStreamPrefix(prefix string) RedisOption {
	return func(s *RedisStream) {
		s.prefix = prefix
	}
}

// WithMaxLen 设置 stream 近似最大长度（MAXLEN ~），0 表示不裁剪。
func WithMaxLen(n int64) RedisOption {
	return func(s *RedisStream) {
		if n >= 0 {
			s.maxLen = n
		}
	}
}

// RedisStream 通过 XADD 把消息写入 Redis Streams。
type RedisStream struct {
	client redis.UniversalClient
	prefix string
	maxLen int64
}

// NewRedisStream 创建 Redis Streams 队列。client 由调用方管理生命周期。
func NewRedisStream(client redis.UniversalClient, opts ...RedisOption) (*RedisStream, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	s := &RedisStream{client: client, prefix: "todokit:"}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Stream 返回 topic 对应的 stream 名。
func (s *RedisStream) Stream(topic string) string {
	return s.prefix + topic
}

// Enqueue 实现 Enqueuer。
func (s *RedisStream) Enqueue(ctx context.Context, item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	values := make(map[string]any, 2+len(item.Headers))
	values[FieldKey] = item.Key
	values[FieldPayload] = item.Payload
	for k, v := range item.Headers {
		values[fieldHeader+k] = v
	}
	args := &redis.XAddArgs{
		Stream: s.Stream(item.Topic),
		Values: values,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xqueue: xadd %s: %w", args.Stream, err)
	}
	return nil
}

var _ Enqueuer = (*RedisStream)(nil)
