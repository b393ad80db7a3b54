// Package xmetrics 提供仓储层使用的计数/水位指标接口与观测跨度。
//
// # 设计理念
//
// 仓储代码只依赖最小化接口 [Sink]：
//
//	Increment(name)          // 计数器 +1
//	RecordLevel(name, value) // 记录当前水位（gauge）
//
// Sink 的实现必须是 fire-and-forget：不阻塞、不返回错误、不 panic。
// 指标后端故障不能影响业务调用。
//
// # 实现
//
//   - [NewOTelSink]：基于 OpenTelemetry metric，按名称惰性创建 Int64Counter / Int64Gauge
//   - [Memory]：进程内实现，用于测试断言和 CLI 输出
//   - [Nop]：空实现
//   - [Prefixed]：为所有指标名添加服务前缀
//   - [Tee]：同时写入多个 Sink
//
// # 观测跨度
//
// [Observer] / [Span] 沿用统一的 component/operation/status 属性，
// 默认实现基于 OpenTelemetry trace + metric：
//
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "todorepo",
//		Operation: "add.todo",
//		Kind:      xmetrics.KindClient,
//	})
//	defer span.End(xmetrics.Result{Err: err})
package xmetrics
