// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持 lumberjack 轮转
//   - xmetrics: 指标 Sink（OpenTelemetry、内存、Nop）与操作级 Observer
package observability
