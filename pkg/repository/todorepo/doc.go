// Package todorepo 是 Todo 的弹性仓储。
//
// 每个 Todo 版本写入两张表：
//
//	Todo        (id, name, description, createdTime, updatedTime)，按 updatedTime 倒序读取最新版本
//	TodoLookup  (id, updatedTime)，按 updatedTime 正序读取首个版本，即创建时间
//
// [Repo.AddTodo] 并发写两张表并以 all 组合，同时把 Todo 投递到旁路队列，
// 两者以 any 竞速：队列接受或两张表都写入成功，任一先完成即向调用方返回 true。
// 旁路队列与存储可能短暂不一致，由下游对账处理。
//
// [Repo.LoadTodo] 读取最新版本；旧数据缺少 createdTime 时从 TodoLookup 读取首个版本时间，
// 结果缓存在进程内 LRU 中。
package todorepo
