package todorepo

import "errors"

var (
	// ErrInvalidTodo 表示 Todo 缺少 ID 或更新时间。
	ErrInvalidTodo = errors.New("todorepo: invalid todo")

	// ErrCreatedTimeNotFound 表示 TodoLookup 中没有该 Todo 的首个版本。
	ErrCreatedTimeNotFound = errors.New("todorepo: created time not found")

	// ErrNilCore 表示未提供仓储核心。
	ErrNilCore = errors.New("todorepo: core cannot be nil")
)
