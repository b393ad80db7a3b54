// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xpool: 泛型 Worker Pool 与基于 ants 的阻塞执行器
package util
