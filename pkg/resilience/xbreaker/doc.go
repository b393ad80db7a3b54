// Package xbreaker 提供仓储连接的断路器状态机。
//
// # Breaker
//
// [Breaker] 是两态的标签联合：
//
//   - Open：没有任何资源句柄，所有操作以 NotConnected 失败
//   - Operational：恰好持有一个非空资源句柄、一个错误阈值与一个健康判定函数
//
// 判定函数返回 true 表示资源已退化。Operational 一旦被判定为退化就保持退化（锁存），
// 直到被新的 Breaker 替换。[Breaker.Match] 在一次判定上选择分支，保证两个分支恰好执行一个；
// IfBroken / IfOperational 链返回固定了首次判定的视图，同一条链同样恰好执行一个分支。
//
// # Holder
//
// [Holder] 以原子指针持有当前 Breaker。状态替换（重连、清理）通过 CAS 完成，
// 并发的调用方只会看到完整的旧 Breaker 或完整的新 Breaker。
//
// # CallGuard
//
// [CallGuard] 基于 [sony/gobreaker/v2] 保护每一次存储调用，默认连续失败 5 次触发熔断。
// 仓储把 CallGuard 的熔断状态纳入 Breaker 的健康判定，使周期任务在熔断后重建连接。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
