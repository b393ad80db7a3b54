// Package storageopt 提供 xstore 驱动共享的配置选项与执行埋点。
//
// 本包是 internal 包，仅供 pkg/storage 下的驱动（xmongo、xclickhouse）使用。
//
// 依赖链为：驱动 → internal/storageopt → 低层 pkg（xpool、xmetrics、xlog），
// 不构成循环依赖。
//
// 主要功能：
//   - 连接与探活超时常量
//   - 慢语句检测器（同步/异步钩子，异步钩子由 xpool 执行）
//   - 语句计数器
//   - Instrumenter：为每条语句创建观测跨度、计数并检测慢语句
package storageopt
