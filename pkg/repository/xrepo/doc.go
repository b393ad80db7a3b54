// Package xrepo 提供弹性仓储的公共机制：断路器门控、反应器调度、
// 成功/失败计数、周期健康检查与重连。
//
// # 操作流程
//
// 每个仓储操作经过 [Gate]：
//
//  1. Breaker 不可用时立即以 [ErrNotConnected] 拒绝，并计数 <store>.breaker.broken
//  2. 否则把操作投递到反应器，在串行回合中以当前连接 [*Conn] 执行
//
// 操作内部通过 [Core.Exec] 访问存储：调用运行在反应器阻塞执行器上，
// 经连接级 CallGuard 保护，失败时计数并以 [ErrStoreOperation] 拒绝，
// 写入未生效时以 [ErrInvariant] 拒绝。
//
// # 健康检查与重连
//
// [Core.Start] 在预热延迟后注册周期任务 [Core.HealthCheck]。
// Breaker 不可用时，周期任务清理旧连接并通过 [Connector] 重新连接：
// 服务发现、驱动连接、幂等初始化语句。连续失败达到阈值后
// 服务健康标记进入 failing，重连成功后恢复。
//
// # 指标
//
//	<op>.success / <op>.fail / <op>.fail.<kind> / <op>.fail.not.added
//	<store>.error / <store>.breaker.broken / <store>.guard.<state>
//	connect.called / discovery.service.success / discovery.service.fail
//	repo.breaker.broken / repo.not.connected / repo.connect.error(.<kind>)
//	repo.connect.error.fatal / repo.connect.recover
package xrepo
