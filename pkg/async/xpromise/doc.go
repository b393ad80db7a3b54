// Package xpromise 提供单次赋值的异步结果 [Promise]。
//
// # 状态
//
// Promise 创建时为 Pending，随后恰好一次地进入 Resolved(value) 或 Rejected(error)，
// 之后永不改变。[Settler] 的 Resolve/Reject 只有第一次调用生效，
// 之后的调用返回 false 且没有任何副作用（不会 panic）。
//
// # 续延
//
// Then / Catch / Finally 注册续延并返回同一个 Promise，便于链式调用：
//
//	p.Then(onAdded).Catch(onFailed)
//
// 结算前注册的续延在结算时按注册顺序在结算 goroutine 上执行，且只执行一次；
// 结算后注册的续延立即执行。续延 panic 会被恢复并记录日志，其余续延照常执行。
//
// # 惰性 Promise
//
// [Lazy] 创建的 Promise 在第一次 Invoke 时才运行 setup，重复 Invoke 不会重复执行。
// [New] 创建的 Promise 立即运行 setup，Invoke 为空操作。
// 组合器（xreactor.All / Any）与 [Promise.Await] 会自动 Invoke 输入。
//
// # 错误
//
// [Error] 携带操作名、分类（Kind 哨兵错误）、可读消息与底层原因，
// errors.Is 同时匹配分类与原因。
package xpromise
