// Package xhealth 提供进程级服务健康标记。
//
// [State] 由调用方创建并注入到需要读取或翻转它的组件，不使用包级全局状态。
// 周期健康检查在重连连续失败达到阈值后调用 SetFailingFor，重连成功后调用 RecoverFor；
// 共享同一 State 的多个仓储以各自名称作为 owner，一个仓储恢复不会清除另一个的失败标记。
// 外部就绪探针通过 IsFailing / Snapshot 读取，Snapshot.Owners 列出失败来源。
//
//	health := xhealth.New(xhealth.WithOnChange(func(s xhealth.Snapshot) {
//		logger.Warn(ctx, "service health changed", xlog.State(s.Status()))
//	}))
package xhealth
