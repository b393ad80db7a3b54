package xclickhouse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*poolCommon).purgeStaleWorkers"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*poolCommon).ticktock"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*Pool).purgeStaleWorkers"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*Pool).ticktock"),
	)
}

func open(t *testing.T, c *mockConn) *Session {
	t.Helper()
	d, err := New("todo", WithLogger(xlog.Discard()))
	require.NoError(t, err)
	s, err := d.open(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestQuote(t *testing.T) {
	q, err := quote("todo.Todo")
	require.NoError(t, err)
	assert.Equal(t, "`todo`.`Todo`", q)

	for _, bad := range []string{"", "a b", "a;DROP", "`x`", "1abc", "a.b.c"} {
		_, err := quote(bad)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, bad)
	}
}

func TestBuildStatements(t *testing.T) {
	q, err := buildInsert(xstore.Insert("Todo", xstore.Row{"version": int64(1), "id": "a"}))
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `Todo` (`id`, `version`) VALUES (?, ?)", q.sql)
	assert.Equal(t, []any{"a", int64(1)}, q.args)

	q, err = buildSelect(xstore.Select("Todo", xstore.Row{"id": "a"}).OrderedBy("version", true).WithLimit(1))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `Todo` WHERE `id` = ? ORDER BY `version` DESC LIMIT 1", q.sql)

	q, err = buildSelect(xstore.Select("Todo", nil).WithLimit(1000))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `Todo` LIMIT 1000", q.sql)

	q, err = buildUpdate(xstore.Update("Sub", xstore.Row{"name": "x"}, xstore.Row{"id": "1"}))
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `Sub` UPDATE `name` = ? WHERE `id` = ?", q.sql)
	assert.Equal(t, []any{"x", "1"}, q.args)

	q, err = buildDelete(xstore.Delete("Sub", nil))
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `Sub` WHERE 1", q.sql)

	_, err = buildSelect(xstore.Select("Todo", xstore.Row{"bad col": 1}))
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestNew(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyDatabase)

	d, err := New("todo", nil, WithAuth("u", "p"), WithSettings(nil))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", d.Name())
	_, err = d.Connect(context.Background(), nil)
	assert.ErrorIs(t, err, xstore.ErrNoEndpoints)

	_, err = d.open(context.Background(), &mockConn{pingErr: errors.New("refused")})
	assert.ErrorContains(t, err, "refused")
}

func TestSession_Insert(t *testing.T) {
	c := &mockConn{}
	s := open(t, c)
	ctx := context.Background()

	res, err := s.Execute(ctx, xstore.Insert("Todo", xstore.Row{"id": "a"}))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.Len(t, c.execs, 1)

	c.count = 1
	res, err = s.Execute(ctx, xstore.Insert("TodoLookup", xstore.Row{"id": "a", "created": int64(1)}).Unique("id"))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, []string{"SELECT count() FROM `TodoLookup` WHERE `id` = ?"}, c.counts)
	assert.Len(t, c.execs, 1)

	c.countErr = errors.New("timeout")
	_, err = s.Execute(ctx, xstore.Insert("TodoLookup", xstore.Row{"id": "b"}).Unique("id"))
	assert.ErrorContains(t, err, "timeout")
}

func TestSession_UpsertInsert(t *testing.T) {
	c := &mockConn{count: 1}
	s := open(t, c)

	stmt := xstore.Insert("TodoLookup", xstore.Row{"id": "a", "updatedTime": int64(1)}).Upsert("id", "updatedTime")
	for range 2 {
		res, err := s.Execute(context.Background(), stmt)
		require.NoError(t, err)
		assert.True(t, res.Applied)
	}
	assert.Empty(t, c.counts)
	require.Len(t, c.execs, 2)
	assert.Equal(t, "INSERT INTO `TodoLookup` (`id`, `updatedTime`) VALUES (?, ?)", c.execs[1].query)
}

func TestSession_Mutations(t *testing.T) {
	c := &mockConn{}
	s := open(t, c)
	ctx := context.Background()

	res, err := s.Execute(ctx, xstore.Update("Sub", xstore.Row{"name": "x"}, xstore.Row{"id": "1"}))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Empty(t, c.execs)

	c.count = 2
	res, err = s.Execute(ctx, xstore.Delete("Sub", xstore.Row{"id": "1"}))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.Len(t, c.execs, 1)
	assert.Equal(t, "DELETE FROM `Sub` WHERE `id` = ?", c.execs[0].query)
}

func TestSession_Select(t *testing.T) {
	c := &mockConn{rows: newMockRows([]string{"id", "version"}, [][]any{{"a", int64(2)}, {"a", int64(1)}})}
	s := open(t, c)

	res, err := s.Execute(context.Background(), xstore.Select("Todo", xstore.Row{"id": "a"}))
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, xstore.Row{"id": "a", "version": int64(2)}, res.Rows[0])

	c.rows = newMockRows([]string{"id"}, [][]any{{"a"}})
	c.rows.closeErr = errors.New("close failed")
	_, err = s.Execute(context.Background(), xstore.Select("Todo", nil))
	assert.ErrorContains(t, err, "close failed")
}

func TestSession_CommandAndClose(t *testing.T) {
	c := &mockConn{}
	s := open(t, c)
	ctx := context.Background()

	_, err := s.Execute(ctx, xstore.Command("CREATE TABLE IF NOT EXISTS Todo (id String) ENGINE = MergeTree ORDER BY id"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Stats().Statements)
	require.NoError(t, s.Ping(ctx))

	c.execErr = errors.New("syntax error")
	_, err = s.Execute(ctx, xstore.Command("CREATE"))
	assert.Error(t, err)
	assert.Equal(t, int64(1), s.Stats().Errors)

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 1, c.closed)
	assert.True(t, s.Closed())
	_, err = s.Execute(ctx, xstore.Select("Todo", nil))
	assert.ErrorIs(t, err, xstore.ErrSessionClosed)
}
