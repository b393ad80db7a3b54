package todorepo

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// 表与列。
const (
	TableTodo   = "Todo"
	TableLookup = "TodoLookup"

	ColID          = "id"
	ColName        = "name"
	ColDescription = "description"
	ColCreatedTime = "createdTime"
	ColUpdatedTime = "updatedTime"
)

// Todo 是一个待办事项版本。时间均为 Unix 毫秒。
type Todo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedTime int64  `json:"createdTime"`
	UpdatedTime int64  `json:"updatedTime"`
}

// NewTodo 以新 ID 与当前时间创建 Todo。
func NewTodo(name, description string) Todo {
	now := time.Now().UnixMilli()
	return Todo{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedTime: now,
		UpdatedTime: now,
	}
}

// Revise 返回以当前时间为更新时间的新版本，创建时间不变。
func (t Todo) Revise(name, description string) Todo {
	t.Name = name
	t.Description = description
	t.UpdatedTime = max(time.Now().UnixMilli(), t.UpdatedTime+1)
	return t
}

// Validate 校验 Todo 可写入。
func (t Todo) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTodo)
	}
	if t.UpdatedTime <= 0 {
		return fmt.Errorf("%w: updated time must be positive", ErrInvalidTodo)
	}
	return nil
}

func todoRow(t Todo) xstore.Row {
	return xstore.Row{
		ColID:          t.ID,
		ColName:        t.Name,
		ColDescription: t.Description,
		ColCreatedTime: t.CreatedTime,
		ColUpdatedTime: t.UpdatedTime,
	}
}

func lookupRow(t Todo) xstore.Row {
	return xstore.Row{
		ColID:          t.ID,
		ColUpdatedTime: t.UpdatedTime,
	}
}

func todoFromRow(r xstore.Row) Todo {
	return Todo{
		ID:          asString(r[ColID]),
		Name:        asString(r[ColName]),
		Description: asString(r[ColDescription]),
		CreatedTime: asMillis(r[ColCreatedTime]),
		UpdatedTime: asMillis(r[ColUpdatedTime]),
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

// asMillis 统一各驱动返回的整数与时间类型，缺失时为 0。
func asMillis(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n) //nolint:gosec // 毫秒时间戳不会溢出
	case float64:
		return int64(n)
	case time.Time:
		if n.IsZero() {
			return 0
		}
		return n.UnixMilli()
	case *time.Time:
		if n == nil || n.IsZero() {
			return 0
		}
		return n.UnixMilli()
	default:
		return 0
	}
}
