package xpulsar

import "errors"

var (
	// ErrEmptyURL 表示未指定服务地址。
	ErrEmptyURL = errors.New("xpulsar: empty service url")

	// ErrClosed 表示客户端已关闭。
	ErrClosed = errors.New("xpulsar: client closed")
)
