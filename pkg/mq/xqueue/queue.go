package xqueue

import (
	"context"
	"maps"

	"github.com/google/uuid"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/async/xreactor"
)

// Item 是一条旁路消息。
type Item struct {
	Key     string // 幂等键，下游据此去重
	Topic   string
	Payload []byte
	Headers map[string]string
}

// NewItem 创建以随机 UUID 为键的消息。
func NewItem(topic string, payload []byte) Item {
	return Item{Key: uuid.NewString(), Topic: topic, Payload: payload}
}

// WithHeader 返回附加了 header 的副本。
func (it Item) WithHeader(key, value string) Item {
	h := maps.Clone(it.Headers)
	if h == nil {
		h = make(map[string]string, 1)
	}
	h[key] = value
	it.Headers = h
	return it
}

// Validate 检查消息是否可投递。
func (it Item) Validate() error {
	if it.Topic == "" {
		return ErrEmptyTopic
	}
	return nil
}

// Enqueuer 投递消息。实现必须并发安全，可以阻塞。
type Enqueuer interface {
	Enqueue(ctx context.Context, item Item) error
}

// EnqueuerFunc 把函数适配为 Enqueuer。
type EnqueuerFunc func(ctx context.Context, item Item) error

// Enqueue 实现 Enqueuer。
func (f EnqueuerFunc) Enqueue(ctx context.Context, item Item) error {
	return f(ctx, item)
}

// AsyncEnqueue 在反应器阻塞执行器上投递 item。
// 投递成功时 Promise 以 true 结算，失败时以投递错误拒绝。
func AsyncEnqueue(r *xreactor.Reactor, q Enqueuer, item Item) *xpromise.Promise[bool] {
	if q == nil {
		return xpromise.RejectedWith[bool](ErrNilEnqueuer)
	}
	return xreactor.Blocking(r, func(ctx context.Context) (bool, error) {
		if err := q.Enqueue(ctx, item); err != nil {
			return false, err
		}
		return true, nil
	})
}
