package xlog

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// globalLogger 全局 Logger 实例（并发安全）
var globalLogger atomic.Pointer[LoggerWithLevel]

// Default 返回全局默认 Logger
//
// 懒初始化：首次调用时创建默认 Logger（stderr，Info 级别，text 格式）。
func Default() LoggerWithLevel {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	logger, _, err := New().Build()
	if err != nil {
		logger = Discard()
	}
	// 并发初始化时只保留第一个
	globalLogger.CompareAndSwap(nil, &logger)
	return *globalLogger.Load()
}

// SetDefault 替换全局默认 Logger，nil 会被忽略。
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	globalLogger.Store(&l)
}

// Info 使用全局 Logger 记录 Info 日志
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Info(ctx, msg, attrs...)
}

// Warn 使用全局 Logger 记录 Warn 日志
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Warn(ctx, msg, attrs...)
}

// Error 使用全局 Logger 记录 Error 日志
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Error(ctx, msg, attrs...)
}

// OrDefault 在 l 为 nil 时返回全局 Logger，用于组件的可选注入。
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}
