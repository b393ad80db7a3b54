// Package xdiscovery 提供存储端点的服务发现。
//
// 仓储只把发现当作黑盒：
//
//	endpoints, err := d.Lookup(ctx, "dns://cassandra.marathon.mesos:9042")
//
// # 提示格式
//
// [ParseHint] 支持以下提示：
//
//	host:port[,host:port...]          静态列表（同 static://）
//	static://host:port,host:port      静态列表
//	dns://name[:port]                 先查 SRV，失败再查 A/AAAA（需要端口）
//	etcd://name                       列出 <prefix>/name/ 下的 host:port 值
//	k8s://namespace/service[:port]    按 kubernetes.io/service-name 列出 EndpointSlice
//
// # 后端
//
//   - [Static]：解析提示中的地址或使用配置的默认地址
//   - [DNS]：基于 net.Resolver
//   - [Etcd]：基于 go.etcd.io/etcd/client/v3 前缀查询
//   - [Kubernetes]：基于 k8s.io/client-go 的 EndpointSlice
//   - [Mux]：按提示 scheme 选择后端
//   - [Chain]：依次尝试多个后端，返回第一个非空结果
package xdiscovery
