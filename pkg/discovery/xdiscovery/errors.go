package xdiscovery

import "errors"

var (
	// ErrInvalidHint 表示提示格式无效。
	ErrInvalidHint = errors.New("xdiscovery: invalid hint")

	// ErrNoEndpoints 表示没有发现任何端点。
	ErrNoEndpoints = errors.New("xdiscovery: no endpoints")

	// ErrUnknownScheme 表示没有与提示 scheme 对应的后端。
	ErrUnknownScheme = errors.New("xdiscovery: unknown scheme")

	// ErrNilClient 表示后端客户端为 nil。
	ErrNilClient = errors.New("xdiscovery: nil client")
)
