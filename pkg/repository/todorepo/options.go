package todorepo

import "github.com/omeyang/todokit/pkg/mq/xqueue"

const (
	// DefaultTopic 是旁路队列主题。
	DefaultTopic = "todo"
	// DefaultCacheSize 是创建时间缓存容量。
	DefaultCacheSize = 4096
	// LoadLimit 是 LoadTodos 的返回上限。
	LoadLimit = 1000
)

type options struct {
	queue     xqueue.Enqueuer
	topic     string
	cacheSize int
}

// Option 配置 Repo。
type Option func(*options)

// WithQueue 设置旁路队列与主题。未设置时 AddTodo 只等待双写。
func WithQueue(q xqueue.Enqueuer, topic string) Option {
	return func(o *options) {
		o.queue = q
		if topic != "" {
			o.topic = topic
		}
	}
}

// WithCacheSize 设置创建时间缓存容量。
func WithCacheSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.cacheSize = size
		}
	}
}
