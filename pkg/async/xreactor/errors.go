package xreactor

import "errors"

var (
	// ErrTimeout 表示组合器的时间预算在结算前耗尽。
	ErrTimeout = errors.New("xreactor: timeout")

	// ErrStopped 表示反应器已停止。
	ErrStopped = errors.New("xreactor: reactor stopped")

	// ErrRejected 表示任务因反应器过载被拒绝。
	ErrRejected = errors.New("xreactor: task rejected")

	// ErrNilTask 表示任务为 nil。
	ErrNilTask = errors.New("xreactor: task cannot be nil")
)
