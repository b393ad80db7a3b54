package xstore

import "errors"

var (
	// ErrSessionClosed 表示会话已关闭。
	ErrSessionClosed = errors.New("xstore: session closed")

	// ErrNoEndpoints 表示连接时未提供任何端点。
	ErrNoEndpoints = errors.New("xstore: no endpoints")

	// ErrUnsupported 表示驱动不支持该语句。
	ErrUnsupported = errors.New("xstore: unsupported statement")

	// ErrInvalidStatement 表示语句缺少必要字段。
	ErrInvalidStatement = errors.New("xstore: invalid statement")
)
