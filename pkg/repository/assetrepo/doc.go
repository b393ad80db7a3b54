// Package assetrepo 是资产（Asset）的弹性仓储。
//
// 单表 Asset (id, name, createTime)，主键 (id, createTime)。
// Store 按主键覆盖写入，重复写入同一资产结果不变；其余操作与 subrepo 相同，
// 都建立在 xrepo.Core 的断路器门控、计数与重连之上。
package assetrepo
