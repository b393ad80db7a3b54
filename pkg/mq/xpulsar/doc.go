// Package xpulsar 把 Apache Pulsar 生产者适配为 xqueue.Enqueuer。
//
// 每个主题惰性创建一个生产者并缓存，Close 时统一关闭。
// Item.Key 作为消息键，Item.Headers 作为消息属性。
package xpulsar
