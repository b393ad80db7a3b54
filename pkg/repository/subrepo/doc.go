// Package subrepo 是订阅（Subscription）的弹性仓储。
//
// 单表 Subscription (id, name, thirdPartyId, createTime)，
// 复用 xrepo.Core 的断路器门控、计数与重连机制。
package subrepo
