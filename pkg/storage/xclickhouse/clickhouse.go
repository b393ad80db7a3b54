package xclickhouse

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/omeyang/todokit/internal/storageopt"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// conn 是 driver.Conn 中驱动用到的操作。
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
	Ping(ctx context.Context) error
	Close() error
}

// Driver 是 ClickHouse 的 xstore 驱动。
type Driver struct {
	database string
	cfg      config
	opts     storageopt.Options
}

// New 创建驱动，database 为连接的默认数据库。
func New(database string, opts ...Option) (*Driver, error) {
	if database == "" {
		return nil, ErrEmptyDatabase
	}
	d := &Driver{database: database, cfg: config{username: "default"}}
	for _, opt := range opts {
		if opt != nil {
			opt(&d.cfg)
		}
	}
	d.opts = storageopt.Apply(d.cfg.storage)
	return d, nil
}

// Name 实现 xstore.Driver。
func (d *Driver) Name() string { return "clickhouse" }

// Connect 实现 xstore.Driver：打开连接池并 Ping。
func (d *Driver) Connect(ctx context.Context, addresses []string) (xstore.Session, error) {
	if len(addresses) == 0 {
		return nil, xstore.ErrNoEndpoints
	}
	c, err := clickhouse.Open(&clickhouse.Options{
		Addr: addresses,
		Auth: clickhouse.Auth{
			Database: d.database,
			Username: d.cfg.username,
			Password: d.cfg.password,
		},
		DialTimeout: d.opts.ConnectTimeout,
		Settings:    d.cfg.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("xclickhouse: open: %w", err)
	}
	s, err := d.open(ctx, c)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return s, nil
}

func (d *Driver) open(ctx context.Context, c conn) (*Session, error) {
	in, err := storageopt.NewInstrumenter(d.Name(), d.opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := storageopt.BoundedContext(ctx, d.opts.ConnectTimeout)
	defer cancel()
	if err := in.Ping(ctx, c.Ping); err != nil {
		in.Close()
		return nil, fmt.Errorf("xclickhouse: ping: %w", err)
	}
	return &Session{conn: c, in: in}, nil
}

// Session 是 ClickHouse 会话。
type Session struct {
	conn   conn
	in     *storageopt.Instrumenter
	closed atomic.Bool
}

// Execute 实现 xstore.Session。
func (s *Session) Execute(ctx context.Context, stmt xstore.Statement) (*xstore.Result, error) {
	if s.closed.Load() {
		return nil, xstore.ErrSessionClosed
	}
	if err := stmt.Validate(); err != nil {
		return nil, err
	}
	return s.in.Execute(ctx, stmt, func(ctx context.Context) (*xstore.Result, error) {
		return s.execute(ctx, stmt)
	})
}

func (s *Session) execute(ctx context.Context, stmt xstore.Statement) (*xstore.Result, error) {
	switch stmt.Kind {
	case xstore.KindCommand:
		if err := s.conn.Exec(ctx, stmt.Command); err != nil {
			return nil, err
		}
		return &xstore.Result{Applied: true}, nil
	case xstore.KindInsert:
		if stmt.IfNotExists && len(stmt.Key) > 0 {
			key := make(xstore.Row, len(stmt.Key))
			for _, k := range stmt.Key {
				key[k] = stmt.Values[k]
			}
			n, err := s.count(ctx, stmt.Table, key)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				return &xstore.Result{}, nil
			}
		}
		return s.exec(ctx, stmt, buildInsert)
	case xstore.KindUpdate:
		return s.mutate(ctx, stmt, buildUpdate)
	case xstore.KindDelete:
		return s.mutate(ctx, stmt, buildDelete)
	default:
		return s.query(ctx, stmt)
	}
}

func (s *Session) exec(ctx context.Context, stmt xstore.Statement, build func(xstore.Statement) (query, error)) (*xstore.Result, error) {
	q, err := build(stmt)
	if err != nil {
		return nil, err
	}
	if err := s.conn.Exec(ctx, q.sql, q.args...); err != nil {
		return nil, err
	}
	return &xstore.Result{Applied: true}, nil
}

// mutate 在有匹配行时执行 UPDATE/DELETE，无匹配时 Applied=false。
func (s *Session) mutate(ctx context.Context, stmt xstore.Statement, build func(xstore.Statement) (query, error)) (*xstore.Result, error) {
	n, err := s.count(ctx, stmt.Table, stmt.Where)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return &xstore.Result{}, nil
	}
	return s.exec(ctx, stmt, build)
}

func (s *Session) count(ctx context.Context, table string, where xstore.Row) (uint64, error) {
	q, err := buildCount(table, where)
	if err != nil {
		return 0, err
	}
	var n uint64
	if err := s.conn.QueryRow(ctx, q.sql, q.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("xclickhouse: count: %w", err)
	}
	return n, nil
}

func (s *Session) query(ctx context.Context, stmt xstore.Statement) (res *xstore.Result, err error) {
	q, err := buildSelect(stmt)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("xclickhouse: close rows: %w", cerr))
		}
	}()
	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	return &xstore.Result{Rows: out, Applied: true}, nil
}

// scanRows 按列 ScanType 创建接收变量，ScanType 为 nil 的列使用 *any。
func scanRows(rows driver.Rows) ([]xstore.Row, error) {
	names := rows.Columns()
	types := rows.ColumnTypes()
	scanTypes := make([]reflect.Type, len(types))
	for i, ct := range types {
		scanTypes[i] = ct.ScanType()
	}

	var out []xstore.Row
	for rows.Next() {
		dest := make([]any, len(scanTypes))
		for i, st := range scanTypes {
			if st == nil {
				dest[i] = new(any)
			} else {
				dest[i] = reflect.New(st).Interface()
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("xclickhouse: scan: %w", err)
		}
		row := make(xstore.Row, len(names))
		for i, name := range names {
			row[name] = reflect.ValueOf(dest[i]).Elem().Interface()
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("xclickhouse: rows: %w", err)
	}
	return out, nil
}

// Closed 实现 xstore.Session。
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Ping 探测服务端。
func (s *Session) Ping(ctx context.Context) error {
	return s.in.Ping(ctx, s.conn.Ping)
}

// Stats 返回语句计数。
func (s *Session) Stats() storageopt.Stats {
	return s.in.Stats()
}

// Close 实现 xstore.Session，重复调用安全。
func (s *Session) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	defer s.in.Close()
	if err := s.conn.Close(); err != nil {
		s.in.Logger().Warn(ctx, "close connection failed", xlog.Err(err))
		return fmt.Errorf("xclickhouse: close: %w", err)
	}
	return nil
}

var (
	_ xstore.Driver  = (*Driver)(nil)
	_ xstore.Session = (*Session)(nil)
	_ conn           = (driver.Conn)(nil)
)
