// Package xreactor 提供协作式任务反应器及 All / Any 结果组合器。
//
// # 执行模型
//
// 每个 [Reactor] 拥有一个串行执行上下文（单 worker 的 xpool.Pool），
// 所有任务体（延时任务、周期任务、Defer 任务、Blocking 结果回投）都在其中执行，
// 同一反应器的任务体永不并发。
//
// 阻塞工作（存储调用、连接建立）通过 [Blocking] 提交到有界的阻塞执行器
// （xpool.Executor，基于 ants），完成后把结算回投到串行上下文。
//
// 周期任务基于 robfig/cron/v3 的自定义 Schedule（固定间隔，支持亚秒级），
// 一次性延时任务基于 time.AfterFunc。
//
//	r, _ := xreactor.New()
//	r.Start()
//	defer r.Stop(ctx)
//
//	cancel := r.Repeating(30*time.Second, healthCheck)
//	defer cancel()
//
// # 组合器
//
//   - [Reactor.All]：全部成功时以输入顺序的值数组结算；首个拒绝立即拒绝；超时以 [ErrTimeout] 拒绝
//   - [Reactor.Any]：首个成功即结算；全部失败时以各输入错误（errors.Join，按输入顺序）拒绝；超时以 [ErrTimeout] 拒绝
//
// 组合器会 Invoke 惰性输入。超时只放弃等待，不取消底层调用，迟到的结果被丢弃。
//
// # 注意事项
//
//   - 周期任务不因上一轮仍在进行而跳过，任务体需自行保证可重入
//   - 任务 panic 会被恢复并记录日志
//   - 串行队列满或反应器已停止时任务被丢弃并计数（见 [Reactor.Stats]）
package xreactor
