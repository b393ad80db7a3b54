// Package xkafka 把 confluent-kafka-go/v2 生产者适配为 xqueue.Enqueuer。
//
// Enqueue 同步等待投递报告：Broker 确认前不返回，确认失败时返回投递错误。
// Item.Key 作为 Kafka 消息键，Item.Headers 转为消息头。
//
//	q, err := xkafka.NewEnqueuer(&kafka.ConfigMap{"bootstrap.servers": "localhost:9092"})
//	defer q.Close()
//	err = q.Enqueue(ctx, xqueue.NewItem("todo.pending", payload))
package xkafka
