package xclickhouse

import (
	"context"
	"errors"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// execCall 记录一次 Exec。
type execCall struct {
	query string
	args  []any
}

// mockConn 实现 conn 接口
type mockConn struct {
	pingErr  error
	execErr  error
	closeErr error
	closed   int
	execs    []execCall
	count    uint64
	countErr error
	counts   []string
	rows     *mockRows
	queryErr error
	queries  []string
}

func (m *mockConn) Exec(_ context.Context, query string, args ...any) error {
	if m.execErr != nil {
		return m.execErr
	}
	m.execs = append(m.execs, execCall{query: query, args: args})
	return nil
}

func (m *mockConn) Query(_ context.Context, query string, _ ...any) (driver.Rows, error) {
	m.queries = append(m.queries, query)
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.rows == nil {
		return nil, errors.New("query not implemented")
	}
	return m.rows, nil
}

func (m *mockConn) QueryRow(_ context.Context, query string, _ ...any) driver.Row {
	m.counts = append(m.counts, query)
	return &mockRow{err: m.countErr, scanFunc: func(dest ...any) error {
		if p, ok := dest[0].(*uint64); ok {
			*p = m.count
		}
		return nil
	}}
}

func (m *mockConn) Ping(context.Context) error {
	return m.pingErr
}

func (m *mockConn) Close() error {
	m.closed++
	return m.closeErr
}

// mockRow 实现 driver.Row 接口
type mockRow struct {
	err      error
	scanFunc func(dest ...any) error
}

func (m *mockRow) Err() error {
	return m.err
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if m.scanFunc != nil {
		return m.scanFunc(dest...)
	}
	return nil
}

func (m *mockRow) ScanStruct(_ any) error {
	return m.err
}

// mockRows 实现 driver.Rows 接口
type mockRows struct {
	data        [][]any
	columns     []string
	columnTypes []driver.ColumnType
	index       int
	scanErr     error
	closeErr    error
	err         error
}

func (m *mockRows) Next() bool {
	if m.index < len(m.data) {
		m.index++
		return true
	}
	return false
}

func (m *mockRows) Scan(dest ...any) error {
	if m.scanErr != nil {
		return m.scanErr
	}
	row := m.data[m.index-1]
	for i := 0; i < len(dest) && i < len(row); i++ {
		if ptr, ok := dest[i].(*any); ok {
			*ptr = row[i]
		}
	}
	return nil
}

func (m *mockRows) ScanStruct(_ any) error {
	return m.scanErr
}

func (m *mockRows) ColumnTypes() []driver.ColumnType {
	return m.columnTypes
}

func (m *mockRows) Totals(_ ...any) error {
	return nil
}

func (m *mockRows) Columns() []string {
	return m.columns
}

func (m *mockRows) Close() error {
	return m.closeErr
}

func (m *mockRows) Err() error {
	return m.err
}

// mockColumnType 实现 driver.ColumnType 接口
type mockColumnType struct {
	name   string
	dbType string
}

func (m *mockColumnType) Name() string {
	return m.name
}

func (m *mockColumnType) Nullable() bool {
	return false
}

func (m *mockColumnType) ScanType() reflect.Type {
	return reflect.TypeFor[any]()
}

func (m *mockColumnType) DatabaseTypeName() string {
	return m.dbType
}

// newMockRows 创建 mock 行集
func newMockRows(columns []string, data [][]any) *mockRows {
	columnTypes := make([]driver.ColumnType, len(columns))
	for i, name := range columns {
		columnTypes[i] = &mockColumnType{name: name, dbType: "String"}
	}
	return &mockRows{
		columns:     columns,
		columnTypes: columnTypes,
		data:        data,
	}
}
