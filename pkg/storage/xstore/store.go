package xstore

import (
	"context"
	"fmt"
	"maps"
)

// Kind 是语句类型。
type Kind int

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindCommand:
		return "command"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Row 是一行数据，列名到值。
type Row map[string]any

// Clone 返回浅拷贝。
func (r Row) Clone() Row {
	return maps.Clone(r)
}

// Statement 是与存储无关的结构化语句。
type Statement struct {
	Kind    Kind
	Table   string
	Values  Row    // 插入或更新的列
	Where   Row    // 等值过滤条件
	OrderBy string // 排序列
	Desc    bool
	Limit   int    // 0 表示不限制
	Command string // KindCommand 的原始命令

	// IfNotExists 仅对插入生效：Key 列已存在时不写入，Applied=false。
	IfNotExists bool
	// Replace 仅对插入生效：Key 列已存在时覆盖该行，总是 Applied。
	Replace bool
	Key     []string
}

// Insert 构造插入语句。
func Insert(table string, values Row) Statement {
	return Statement{Kind: KindInsert, Table: table, Values: values}
}

// Select 构造查询语句。
func Select(table string, where Row) Statement {
	return Statement{Kind: KindSelect, Table: table, Where: where}
}

// Update 构造更新语句。
func Update(table string, values, where Row) Statement {
	return Statement{Kind: KindUpdate, Table: table, Values: values, Where: where}
}

// Delete 构造删除语句。
func Delete(table string, where Row) Statement {
	return Statement{Kind: KindDelete, Table: table, Where: where}
}

// Command 构造原始命令（schema 初始化等）。
func Command(cmd string) Statement {
	return Statement{Kind: KindCommand, Command: cmd}
}

// OrderedBy 设置排序。
func (s Statement) OrderedBy(column string, desc bool) Statement {
	s.OrderBy = column
	s.Desc = desc
	return s
}

// WithLimit 设置返回行数上限。
func (s Statement) WithLimit(n int) Statement {
	s.Limit = n
	return s
}

// Unique 把插入变为条件插入：key 列组合已存在时不写入。
func (s Statement) Unique(key ...string) Statement {
	s.IfNotExists = true
	s.Replace = false
	s.Key = key
	return s
}

// Upsert 把插入变为按 key 覆盖：key 列组合已存在时替换该行，
// 重复写入同一行与首次写入结果相同。
func (s Statement) Upsert(key ...string) Statement {
	s.Replace = true
	s.IfNotExists = false
	s.Key = key
	return s
}

// Validate 检查语句是否完整。
func (s Statement) Validate() error {
	switch s.Kind {
	case KindCommand:
		if s.Command == "" {
			return fmt.Errorf("%w: empty command", ErrInvalidStatement)
		}
	case KindInsert:
		if s.Table == "" || len(s.Values) == 0 {
			return fmt.Errorf("%w: insert needs table and values", ErrInvalidStatement)
		}
	case KindUpdate:
		if s.Table == "" || len(s.Values) == 0 || len(s.Where) == 0 {
			return fmt.Errorf("%w: update needs table, values and where", ErrInvalidStatement)
		}
	case KindSelect, KindDelete:
		if s.Table == "" {
			return fmt.Errorf("%w: %s needs table", ErrInvalidStatement, s.Kind)
		}
	default:
		return fmt.Errorf("%w: kind %s", ErrUnsupported, s.Kind)
	}
	return nil
}

// Describe 返回用于日志与指标的简短描述，如 "insert Todo"。
func (s Statement) Describe() string {
	if s.Kind == KindCommand {
		return "command"
	}
	return s.Kind.String() + " " + s.Table
}

// Result 是语句执行结果。
type Result struct {
	Rows    []Row
	Applied bool
}

// One 返回第一行。
func (r *Result) One() (Row, bool) {
	if r == nil || len(r.Rows) == 0 {
		return nil, false
	}
	return r.Rows[0], true
}

// Session 是一个已建立的存储连接。
type Session interface {
	// Execute 执行语句。存储错误通过 error 返回，不 panic。
	Execute(ctx context.Context, stmt Statement) (*Result, error)
	// Closed 报告会话是否已关闭（主动关闭或底层连接失效）。
	Closed() bool
	// Close 关闭会话，重复调用安全。
	Close(ctx context.Context) error
}

// Driver 建立存储会话。
type Driver interface {
	// Name 返回驱动名，用作指标前缀（如 "mongo"）。
	Name() string
	// Connect 连接到 addresses（host:port）。
	Connect(ctx context.Context, addresses []string) (Session, error)
}
