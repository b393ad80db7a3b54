// Package xpool 提供反应器与仓储层使用的两类执行器。
//
// # Pool
//
// [Pool] 是泛型的有界队列 worker pool：
//   - 可配置的 worker 数量（[1, 65536]）和队列大小（[1, 16777216]）
//   - Submit 非阻塞，队列满时返回 [ErrQueueFull]
//   - 单 worker 时任务严格按提交顺序串行执行（反应器的执行上下文即基于此）
//   - 优雅关闭：Shutdown(ctx) 处理完队列中的任务后退出，ctx 到期立即返回
//   - panic 恢复（单个任务失败不影响 pool），通过 [WithPanicHandler] 上报
//   - [Pool.Stats] 返回已执行、已丢弃、已恢复 panic 的任务计数
//
// # Executor
//
// [Executor] 基于 panjf2000/ants/v2 的有界 goroutine 池，用于执行阻塞任务
// （存储调用、连接建立、schema 初始化），使反应器自身永不阻塞。
//
// # 注意事项
//
//   - Close/Shutdown 不可在 handler 内调用，否则会死锁
//   - panic 的任务不会被重试，仅记录日志后丢弃
//   - New 创建后自动启动 worker，无需手动 Start
package xpool
