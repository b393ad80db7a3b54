package subrepo

import "errors"

var (
	// ErrNameRequired 表示更新时未提供名称。
	ErrNameRequired = errors.New("subrepo: name cannot be empty")

	// ErrEmptyID 表示未提供订阅 ID。
	ErrEmptyID = errors.New("subrepo: id cannot be empty")

	// ErrNilCore 表示未提供仓储核心。
	ErrNilCore = errors.New("subrepo: core cannot be nil")
)
