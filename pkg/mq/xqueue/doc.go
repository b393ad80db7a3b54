// Package xqueue 定义持久化旁路通道：写入主存储失败时，
// 仓储可以把同一份数据投递到消息系统，由下游补写。
//
// 核心接口只有一个方法：
//
//	type Enqueuer interface {
//	    Enqueue(ctx context.Context, item Item) error
//	}
//
// 实现：
//   - [RedisStream]：Redis Streams（XADD，可按近似长度裁剪）
//   - [Memory]：进程内队列，支持故障注入
//   - xkafka / xpulsar 包中的 Kafka 与 Pulsar 适配器
//
// 装饰器：
//   - [Retrying]：固定间隔重试（avast/retry-go/v5）
//   - [RateLimited]：基于 Redis 的分布式限流（redis_rate）
//
// [AsyncEnqueue] 在反应器的阻塞执行器上投递，并把结果作为 Promise 在反应器上结算。
package xqueue
