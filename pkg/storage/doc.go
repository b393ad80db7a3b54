// Package storage 提供仓储所用的外部存储客户端。
//
// 子包列表：
//   - xstore: Driver/Session/Statement 抽象与带故障注入的内存实现
//   - xmongo: 基于 mongo-driver/v2 的驱动
//   - xclickhouse: 基于 clickhouse-go/v2 的驱动
package storage
