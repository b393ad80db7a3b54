// Package mq 提供仓储写入旁路通道相关的子包。
//
// 子包列表：
//   - xqueue: Enqueuer 接口、Redis Streams / 内存实现、重试限流追踪装饰器
//   - xkafka: Kafka 生产者适配
//   - xpulsar: Pulsar 生产者适配
package mq
