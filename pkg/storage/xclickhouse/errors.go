package xclickhouse

import "errors"

var (
	// ErrInvalidIdentifier 表示表名或列名不是合法标识符。
	ErrInvalidIdentifier = errors.New("xclickhouse: invalid identifier")

	// ErrEmptyDatabase 表示未指定数据库名。
	ErrEmptyDatabase = errors.New("xclickhouse: empty database name")
)
