package xmongo

import "errors"

var (
	// ErrEmptyDatabase 表示未指定数据库名。
	ErrEmptyDatabase = errors.New("xmongo: empty database name")

	// ErrInvalidCommand 表示原始命令不是合法的扩展 JSON 文档。
	ErrInvalidCommand = errors.New("xmongo: invalid command document")
)
