// Package xrun 基于 errgroup 管理 todoctl serve 的进程生命周期。
//
// 任一服务返回错误、收到终止信号或调用 [Group.Cancel] 时，共享的 context
// 被取消，其余服务据此退出。[Run] 默认监听 [DefaultSignals]，以
// [*SignalError] 作为退出原因返回，可用 errors.Is(err, ErrSignal) 判断。
//
// [Lifecycle] 把"启动、等待取消、限时关闭"的组件（如仓储核心）适配为服务：
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.Lifecycle("todo", repo.Start, repo.Close, 10*time.Second),
//	    xrun.Until("config-watch", watcher),
//	)
package xrun
