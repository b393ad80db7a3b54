// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、轮转）
//   - 自动从 context 注入 OpenTelemetry trace_id/span_id（默认启用）
//   - 动态级别调整（运行时热更新，配合 xconf.Watch 使用）
//   - 全局 Logger 便利函数
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，后续 Set 操作被跳过）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/todo/repo.log").
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// # 全局 Logger
//
// 适用于 CLI、测试等简单场景，仓储等组件推荐依赖注入：
//
//   - [Default]: 获取全局 Logger（惰性初始化：stderr、Info 级别、text 格式）
//   - [SetDefault]: 替换全局 Logger（nil 会被忽略）
//   - [Discard]: 丢弃所有输出的 Logger，用于测试
//
// # 便捷属性
//
// [Err]、[Duration]、[Component]、[Operation]、[Count]、[Endpoint]、[State]。
package xlog
