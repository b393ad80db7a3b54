// Package xstore 定义仓储与外部存储之间的最小客户端契约。
//
// 仓储只把存储当作"执行语句、得到行"的黑盒：
//
//	sess, err := driver.Connect(ctx, []string{"10.0.0.1:27017"})
//	res, err := sess.Execute(ctx, xstore.Insert("Todo", row))
//	if !res.Applied { ... }
//
// [Statement] 是与存储无关的结构化语句（插入、查询、更新、删除、原始命令），
// 由各驱动翻译为自身的查询语言：
//
//   - xmongo：mongo-driver/v2，原始命令为扩展 JSON 格式的 runCommand
//   - xclickhouse：clickhouse-go/v2，原始命令为 SQL/DDL
//   - [Memory]：进程内驱动，支持故障注入，用于测试与本地运行
//
// Result.Applied 表示写入是否真正生效。驱动在写入被存储确认但未生效时
// （例如条件插入冲突、未确认写入）返回 Applied=false 且不返回错误，
// 由仓储决定是否视为不变量违反。
package xstore
