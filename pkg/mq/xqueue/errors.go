package xqueue

import "errors"

var (
	// ErrClosed 表示队列已关闭。
	ErrClosed = errors.New("xqueue: closed")

	// ErrEmptyTopic 表示 Item 未指定主题。
	ErrEmptyTopic = errors.New("xqueue: empty topic")

	// ErrNilEnqueuer 表示传入了 nil 队列。
	ErrNilEnqueuer = errors.New("xqueue: nil enqueuer")

	// ErrFull 表示内存队列已满。
	ErrFull = errors.New("xqueue: queue full")

	// ErrNilClient 表示传入了 nil 客户端。
	ErrNilClient = errors.New("xqueue: nil client")

	// ErrRateLimited 表示投递被限流拒绝。
	ErrRateLimited = errors.New("xqueue: rate limited")
)
