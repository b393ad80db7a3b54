// Package xclickhouse 是基于 clickhouse-go/v2 的 xstore 驱动。
//
// 语句翻译规则：
//   - Insert：INSERT INTO ... VALUES；带 Unique 键时先按键计数，已存在则 Applied=false；
//     带 Upsert 键时直接写入，覆盖语义由 ReplacingMergeTree 按排序键合并实现
//   - Select：SELECT * ... WHERE a = ? AND ... ORDER BY ... LIMIT n，按列 ScanType 扫描
//   - Update：ALTER TABLE ... UPDATE（异步 mutation），无匹配行时 Applied=false
//   - Delete：轻量删除 DELETE FROM，无匹配行时 Applied=false
//   - Command：原样执行的 SQL/DDL
//
// ClickHouse 没有条件写入，Unique 插入的"检查后写入"不是原子的，
// 并发写同一键时可能产生重复行。
//
// 表名与列名必须是合法标识符，语句中以反引号引用，值一律参数化。
package xclickhouse
