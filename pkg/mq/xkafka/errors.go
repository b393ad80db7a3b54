package xkafka

import "errors"

var (
	// ErrNilProducer 表示传入了 nil 生产者。
	ErrNilProducer = errors.New("xkafka: nil producer")

	// ErrClosed 表示生产者已关闭。
	ErrClosed = errors.New("xkafka: producer closed")

	// ErrFlushTimeout 表示关闭时仍有消息未发送完。
	ErrFlushTimeout = errors.New("xkafka: flush timeout")
)
