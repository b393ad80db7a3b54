// Package xconf 加载 todokit 的配置，基于 koanf 实现。
//
// # 配置源
//
// [Open] 从 .yaml/.yml/.json 文件加载，[FromBytes] 从字节数据加载（适用于
// K8s ConfigMap 挂载或测试）。[Source.Unmarshal] 把任意路径反序列化到带
// koanf 标签的结构体；[Source.Settings] 在 [Default] 之上叠加文件内容并校验，
// 文件中未出现的字段保留默认值。
//
// 时长字段使用 Go 时长字符串，例如：
//
//	repo:
//	  service: "dns://mongo.todo.svc:27017"
//	  warm_up: 60s
//	  check_interval: 30s
//	store:
//	  driver: mongo
//	  database: todo
//	queue:
//	  kind: redis
//	  redis_addr: 127.0.0.1:6379
//
// # 热重载
//
// [Watch] 监视配置文件所在目录（兼容 vim/emacs 的原子写入），防抖后调用
// [Source.Reload] 并以新的 [Settings] 回调。Stop 之后到期的重载不再回调。
package xconf
