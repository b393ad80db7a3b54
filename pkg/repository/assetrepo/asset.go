package assetrepo

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// 表与列。
const (
	Table = "Asset"

	ColID         = "id"
	ColName       = "name"
	ColCreateTime = "createTime"
)

// Asset 是一个资产。CreateTime 为 Unix 毫秒。
type Asset struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreateTime int64  `json:"createTime"`
}

func (a Asset) withDefaults() Asset {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreateTime == 0 {
		a.CreateTime = time.Now().UnixMilli()
	}
	return a
}

func row(a Asset) xstore.Row {
	return xstore.Row{ColID: a.ID, ColName: a.Name, ColCreateTime: a.CreateTime}
}

func fromRow(r xstore.Row) Asset {
	a := Asset{}
	if v, ok := r[ColID]; ok && v != nil {
		a.ID = fmt.Sprint(v)
	}
	if v, ok := r[ColName]; ok && v != nil {
		a.Name = fmt.Sprint(v)
	}
	switch v := r[ColCreateTime].(type) {
	case int64:
		a.CreateTime = v
	case int32:
		a.CreateTime = int64(v)
	case int:
		a.CreateTime = int64(v)
	case float64:
		a.CreateTime = int64(v)
	case time.Time:
		a.CreateTime = v.UnixMilli()
	}
	return a
}

// DefaultBootstrap 返回 driver 的幂等初始化语句，未知驱动返回 nil。
func DefaultBootstrap(driver string) []string {
	switch driver {
	case "mongo":
		return []string{
			`{"createIndexes": "Asset", "indexes": [{"key": {"id": 1, "createTime": 1}, "name": "id_create", "unique": true}]}`,
		}
	case "clickhouse":
		return []string{
			"CREATE TABLE IF NOT EXISTS Asset (id String, name String, createTime Int64) " +
				"ENGINE = ReplacingMergeTree ORDER BY (id, createTime)",
		}
	case "memory":
		return []string{"CREATE TABLE IF NOT EXISTS Asset"}
	default:
		return nil
	}
}
