package xpulsar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/omeyang/todokit/pkg/mq/xqueue"
)

// sender 是 pulsar.Producer 中用到的操作。
type sender interface {
	Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error)
	Close()
}

// Option 配置 Enqueuer。
type Option func(*pulsar.ClientOptions)

// WithConnectionTimeout 设置连接超时。
func WithConnectionTimeout(d time.Duration) Option {
	return func(o *pulsar.ClientOptions) {
		if d > 0 {
			o.ConnectionTimeout = d
		}
	}
}

// WithOperationTimeout 设置操作超时。
func WithOperationTimeout(d time.Duration) Option {
	return func(o *pulsar.ClientOptions) {
		if d > 0 {
			o.OperationTimeout = d
		}
	}
}

// WithAuthentication 设置认证方式。
func WithAuthentication(auth pulsar.Authentication) Option {
	return func(o *pulsar.ClientOptions) {
		o.Authentication = auth
	}
}

// Enqueuer 是 Pulsar 旁路通道。
type Enqueuer struct {
	create  func(topic string) (sender, error)
	release func()

	mu        sync.Mutex
	producers map[string]sender
	closed    bool
}

// NewEnqueuer 连接 url（如 pulsar://localhost:6650）。
func NewEnqueuer(url string, opts ...Option) (*Enqueuer, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	co := pulsar.ClientOptions{
		URL:               url,
		ConnectionTimeout: 5 * time.Second,
		OperationTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	client, err := pulsar.NewClient(co)
	if err != nil {
		return nil, fmt.Errorf("xpulsar: new client: %w", err)
	}
	return newEnqueuer(func(topic string) (sender, error) {
		return client.CreateProducer(pulsar.ProducerOptions{Topic: topic})
	}, client.Close), nil
}

func newEnqueuer(create func(string) (sender, error), release func()) *Enqueuer {
	return &Enqueuer{create: create, release: release, producers: make(map[string]sender)}
}

func (e *Enqueuer) producer(topic string) (sender, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if p, ok := e.producers[topic]; ok {
		return p, nil
	}
	p, err := e.create(topic)
	if err != nil {
		return nil, fmt.Errorf("xpulsar: create producer %s: %w", topic, err)
	}
	e.producers[topic] = p
	return p, nil
}

// Enqueue 实现 xqueue.Enqueuer。
func (e *Enqueuer) Enqueue(ctx context.Context, item xqueue.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	p, err := e.producer(item.Topic)
	if err != nil {
		return err
	}
	_, err = p.Send(ctx, &pulsar.ProducerMessage{
		Key:        item.Key,
		Payload:    item.Payload,
		Properties: item.Headers,
	})
	if err != nil {
		return fmt.Errorf("xpulsar: send: %w", err)
	}
	return nil
}

// Close 关闭全部生产者与客户端，重复调用返回 ErrClosed。
func (e *Enqueuer) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	producers := e.producers
	e.producers = nil
	e.mu.Unlock()

	for _, p := range producers {
		p.Close()
	}
	if e.release != nil {
		e.release()
	}
	return nil
}

var (
	_ xqueue.Enqueuer = (*Enqueuer)(nil)
	_ sender          = pulsar.Producer(nil)
)
