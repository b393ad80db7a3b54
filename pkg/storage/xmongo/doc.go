// Package xmongo 是基于 mongo-driver/v2 的 xstore 驱动。
//
// 语句翻译规则：
//   - Insert：InsertOne；带 Unique 键时改为以键为过滤条件的 upsert（$setOnInsert），
//     键已存在时 Applied=false
//   - Select：Find，Where 为等值过滤，OrderBy/Limit 映射为 sort/limit，结果去掉 _id
//   - Update：UpdateMany($set)，无匹配文档时 Applied=false
//   - Delete：DeleteMany，无删除文档时 Applied=false
//   - Command：扩展 JSON 文档，经 RunCommand 执行（如创建索引）
//
// 未确认写入（Acknowledged=false）一律视为 Applied=false。
//
// 基本用法：
//
//	drv := xmongo.New("todo", xmongo.WithSlowQueryThreshold(200*time.Millisecond))
//	sess, err := drv.Connect(ctx, []string{"10.0.0.5:27017"})
package xmongo
