package xclickhouse

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// identPattern 允许 name 或 db.name，禁止反引号与控制字符。
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

func quote(ident string) (string, error) {
	if !identPattern.MatchString(ident) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = "`" + p + "`"
	}
	return strings.Join(parts, "."), nil
}

// query 是参数化的 SQL 文本。
type query struct {
	sql  string
	args []any
}

func columns(row xstore.Row) []string {
	return slices.Sorted(maps.Keys(row))
}

// whereClause 生成 " WHERE a = ? AND b = ?"，条件为空时返回空串。
func whereClause(where xstore.Row) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(where))
	args := make([]any, 0, len(where))
	for _, c := range columns(where) {
		q, err := quote(c)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, q+" = ?")
		args = append(args, where[c])
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildInsert(stmt xstore.Statement) (query, error) {
	table, err := quote(stmt.Table)
	if err != nil {
		return query{}, err
	}
	cols := columns(stmt.Values)
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		if quoted[i], err = quote(c); err != nil {
			return query{}, err
		}
		args[i] = stmt.Values[c]
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return query{
		sql:  fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), marks),
		args: args,
	}, nil
}

func buildSelect(stmt xstore.Statement) (query, error) {
	table, err := quote(stmt.Table)
	if err != nil {
		return query{}, err
	}
	where, args, err := whereClause(stmt.Where)
	if err != nil {
		return query{}, err
	}
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(table)
	b.WriteString(where)
	if stmt.OrderBy != "" {
		col, err := quote(stmt.OrderBy)
		if err != nil {
			return query{}, err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(col)
		if stmt.Desc {
			b.WriteString(" DESC")
		}
	}
	if stmt.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", stmt.Limit)
	}
	return query{sql: b.String(), args: args}, nil
}

func buildCount(table string, where xstore.Row) (query, error) {
	t, err := quote(table)
	if err != nil {
		return query{}, err
	}
	w, args, err := whereClause(where)
	if err != nil {
		return query{}, err
	}
	return query{sql: "SELECT count() FROM " + t + w, args: args}, nil
}

func buildUpdate(stmt xstore.Statement) (query, error) {
	table, err := quote(stmt.Table)
	if err != nil {
		return query{}, err
	}
	cols := columns(stmt.Values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(stmt.Where))
	for i, c := range cols {
		q, err := quote(c)
		if err != nil {
			return query{}, err
		}
		sets[i] = q + " = ?"
		args = append(args, stmt.Values[c])
	}
	where, wargs, err := whereClause(stmt.Where)
	if err != nil {
		return query{}, err
	}
	return query{
		sql:  fmt.Sprintf("ALTER TABLE %s UPDATE %s%s", table, strings.Join(sets, ", "), where),
		args: append(args, wargs...),
	}, nil
}

func buildDelete(stmt xstore.Statement) (query, error) {
	table, err := quote(stmt.Table)
	if err != nil {
		return query{}, err
	}
	where, args, err := whereClause(stmt.Where)
	if err != nil {
		return query{}, err
	}
	if where == "" {
		// 轻量删除要求 WHERE 子句
		where = " WHERE 1"
	}
	return query{sql: "DELETE FROM " + table + where, args: args}, nil
}
