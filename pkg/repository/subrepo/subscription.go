package subrepo

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// 表与列。
const (
	Table = "Subscription"

	ColID           = "id"
	ColName         = "name"
	ColThirdPartyID = "thirdPartyId"
	ColCreateTime   = "createTime"
)

// Subscription 是一个订阅。CreateTime 为 Unix 毫秒。
type Subscription struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ThirdPartyID string `json:"thirdPartyId"`
	CreateTime   int64  `json:"createTime"`
}

// withDefaults 补齐 ID 与创建时间。
func (s Subscription) withDefaults() Subscription {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreateTime == 0 {
		s.CreateTime = time.Now().UnixMilli()
	}
	return s
}

func row(s Subscription) xstore.Row {
	return xstore.Row{
		ColID:           s.ID,
		ColName:         s.Name,
		ColThirdPartyID: s.ThirdPartyID,
		ColCreateTime:   s.CreateTime,
	}
}

func fromRow(r xstore.Row) Subscription {
	s := Subscription{
		ID:           str(r[ColID]),
		Name:         str(r[ColName]),
		ThirdPartyID: str(r[ColThirdPartyID]),
	}
	switch v := r[ColCreateTime].(type) {
	case int64:
		s.CreateTime = v
	case int32:
		s.CreateTime = int64(v)
	case int:
		s.CreateTime = int64(v)
	case float64:
		s.CreateTime = int64(v)
	case time.Time:
		s.CreateTime = v.UnixMilli()
	}
	return s
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// DefaultBootstrap 返回 driver 的幂等初始化语句，未知驱动返回 nil。
func DefaultBootstrap(driver string) []string {
	switch driver {
	case "mongo":
		return []string{
			`{"createIndexes": "Subscription", "indexes": [{"key": {"id": 1}, "name": "id_unique", "unique": true}]}`,
		}
	case "clickhouse":
		return []string{
			"CREATE TABLE IF NOT EXISTS Subscription (id String, name String, thirdPartyId String, " +
				"createTime Int64) ENGINE = MergeTree ORDER BY (id, createTime)",
		}
	case "memory":
		return []string{"CREATE TABLE IF NOT EXISTS Subscription"}
	default:
		return nil
	}
}
