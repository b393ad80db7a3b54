package todorepo

// DefaultBootstrap 返回 driver 的幂等初始化语句，未知驱动返回 nil。
func DefaultBootstrap(driver string) []string {
	switch driver {
	case "mongo":
		return []string{
			`{"createIndexes": "Todo", "indexes": [{"key": {"id": 1, "updatedTime": -1}, "name": "id_updated_desc", "unique": true}]}`,
			`{"createIndexes": "TodoLookup", "indexes": [{"key": {"id": 1, "updatedTime": 1}, "name": "id_updated_asc", "unique": true}]}`,
		}
	case "clickhouse":
		return []string{
			"CREATE TABLE IF NOT EXISTS Todo (id String, name String, description String, " +
				"createdTime Int64, updatedTime Int64) ENGINE = ReplacingMergeTree ORDER BY (id, updatedTime)",
			"CREATE TABLE IF NOT EXISTS TodoLookup (id String, updatedTime Int64) " +
				"ENGINE = ReplacingMergeTree ORDER BY (id, updatedTime)",
		}
	case "memory":
		return []string{"CREATE TABLE IF NOT EXISTS Todo", "CREATE TABLE IF NOT EXISTS TodoLookup"}
	default:
		return nil
	}
}
