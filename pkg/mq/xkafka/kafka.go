package xkafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/omeyang/todokit/pkg/mq/xqueue"
)

// producer 是 *kafka.Producer 中用到的操作。
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// Option 配置 Enqueuer。
type Option func(*Enqueuer)

// WithFlushTimeout 设置 Close 时等待未发送消息的时长。
func WithFlushTimeout(d time.Duration) Option {
	return func(e *Enqueuer) {
		if d > 0 {
			e.flushTimeout = d
		}
	}
}

// Stats 是投递计数快照。
type Stats struct {
	Delivered int64
	Failed    int64
	Bytes     int64
}

// Enqueuer 是 Kafka 旁路通道。
type Enqueuer struct {
	producer     producer
	flushTimeout time.Duration
	closed       atomic.Bool

	delivered atomic.Int64
	failed    atomic.Int64
	bytes     atomic.Int64
}

// NewEnqueuer 按 config 创建生产者。
func NewEnqueuer(config *kafka.ConfigMap, opts ...Option) (*Enqueuer, error) {
	p, err := kafka.NewProducer(config)
	if err != nil {
		return nil, fmt.Errorf("xkafka: new producer: %w", err)
	}
	return newEnqueuer(p, opts...)
}

func newEnqueuer(p producer, opts ...Option) (*Enqueuer, error) {
	if p == nil {
		return nil, ErrNilProducer
	}
	e := &Enqueuer{producer: p, flushTimeout: 10 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Enqueue 实现 xqueue.Enqueuer，等待 Broker 投递报告。
func (e *Enqueuer) Enqueue(ctx context.Context, item xqueue.Item) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := item.Validate(); err != nil {
		return err
	}
	topic := item.Topic
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(item.Key),
		Value:          item.Payload,
	}
	for k, v := range item.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	report := make(chan kafka.Event, 1)
	if err := e.producer.Produce(msg, report); err != nil {
		e.failed.Add(1)
		return fmt.Errorf("xkafka: produce: %w", err)
	}
	select {
	case ev := <-report:
		return e.settle(ev)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Enqueuer) settle(ev kafka.Event) error {
	m, ok := ev.(*kafka.Message)
	if !ok {
		e.failed.Add(1)
		return fmt.Errorf("xkafka: unexpected delivery event %T", ev)
	}
	if m.TopicPartition.Error != nil {
		e.failed.Add(1)
		return fmt.Errorf("xkafka: delivery: %w", m.TopicPartition.Error)
	}
	e.delivered.Add(1)
	e.bytes.Add(int64(len(m.Value)))
	return nil
}

// Stats 返回投递计数。
func (e *Enqueuer) Stats() Stats {
	return Stats{Delivered: e.delivered.Load(), Failed: e.failed.Load(), Bytes: e.bytes.Load()}
}

// Close 等待在途消息并关闭生产者，重复调用返回 ErrClosed。
func (e *Enqueuer) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	remaining := e.producer.Flush(int(e.flushTimeout.Milliseconds()))
	e.producer.Close()
	if remaining > 0 {
		return fmt.Errorf("%w: %d messages still in queue", ErrFlushTimeout, remaining)
	}
	return nil
}

var _ xqueue.Enqueuer = (*Enqueuer)(nil)
