package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key 常量
const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"
	KeyOperation = "operation"
	KeyEndpoint  = "endpoint"
	KeyState     = "state"
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
)

// Err 创建错误属性
//
// 如果 err 为 nil，返回空属性（会被 slog 忽略）。
//
//	if err != nil {
//	    logger.Error(ctx, "insert failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建人类可读的耗时属性（如 "1.5s"）
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名称属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名称属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Endpoint 创建端点属性，通常为 host:port
func Endpoint(addr string) slog.Attr {
	return slog.String(KeyEndpoint, addr)
}

// State 创建状态属性（熔断器状态、健康状态等）
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}
