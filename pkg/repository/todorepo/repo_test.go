package todorepo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/discovery/xdiscovery"
	"github.com/omeyang/todokit/pkg/mq/xqueue"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
	"github.com/omeyang/todokit/pkg/repository/xrepo"
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

var errWrite = errors.New("write timeout")

type fixture struct {
	repo    *Repo
	mem     *xstore.Memory
	queue   *xqueue.Memory
	metrics *xmetrics.Memory
}

func newFixture(t *testing.T, queue xqueue.Enqueuer) *fixture {
	t.Helper()
	cfg := xrepo.DefaultConfig()
	cfg.ConnectOnStart = false
	cfg.AllTimeout = time.Second
	cfg.AnyTimeout = 2 * time.Second
	cfg.Bootstrap = DefaultBootstrap("memory")

	f := &fixture{mem: xstore.NewMemory(), metrics: xmetrics.NewMemory()}
	core, err := xrepo.New(f.mem,
		xdiscovery.NewStatic(xdiscovery.Endpoint{Host: "127.0.0.1", Port: 9042}),
		xrepo.WithConfig(cfg),
		xrepo.WithMetrics(f.metrics),
		xrepo.WithLogger(xlog.Discard()),
	)
	require.NoError(t, err)
	core.Reactor().Start()

	var opts []Option
	if queue != nil {
		opts = append(opts, WithQueue(queue, ""))
		if mq, ok := queue.(*xqueue.Memory); ok {
			f.queue = mq
		}
	}
	f.repo, err = New(core, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, f.repo.Close(ctx))
	})
	return f
}

func await[T any](t *testing.T, p *xpromise.Promise[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Await(ctx)
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	_, err := await(t, f.repo.Connect())
	require.NoError(t, err)
}

// seed 绕过仓储直接写入存储。
func (f *fixture) seed(t *testing.T, table string, rows ...xstore.Row) {
	t.Helper()
	s, err := f.mem.Connect(context.Background(), []string{"seed:1"})
	require.NoError(t, err)
	for _, row := range rows {
		_, err := s.Execute(context.Background(), xstore.Insert(table, row))
		require.NoError(t, err)
	}
}

func TestAddTodo_NotConnected(t *testing.T) {
	f := newFixture(t, xqueue.NewMemory(0))
	_, err := await(t, f.repo.AddTodo(NewTodo("milk", "2 liters")))
	assert.ErrorIs(t, err, xrepo.ErrNotConnected)
	assert.Equal(t, int64(1), f.metrics.Count("memory.breaker.broken"))
	assert.Zero(t, f.queue.Len())
}

func TestAddTodo_Invalid(t *testing.T) {
	f := newFixture(t, nil)
	_, err := await(t, f.repo.AddTodo(Todo{Name: "no id"}))
	assert.ErrorIs(t, err, ErrInvalidTodo)
}

func TestAddTodo_DualWrite(t *testing.T) {
	f := newFixture(t, xqueue.NewMemory(0))
	f.connect(t)
	assert.Equal(t, DefaultBootstrap("memory"), f.mem.Commands())

	todo := NewTodo("milk", "2 liters")
	ok, err := await(t, f.repo.AddTodo(todo))
	require.NoError(t, err)
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		return len(f.mem.Rows(TableTodo)) == 1 && len(f.mem.Rows(TableLookup)) == 1
	}, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return f.metrics.Count("add.todo.success") == 1 && f.metrics.Count("add.lookup.success") == 1
	}, 2*time.Second, time.Millisecond)

	require.Eventually(t, func() bool { return f.queue.Len() == 1 }, 2*time.Second, time.Millisecond)
	item := f.queue.Items(DefaultTopic)[0]
	assert.Equal(t, todo.ID, item.Headers["todo-id"])
	var sent Todo
	require.NoError(t, json.Unmarshal(item.Payload, &sent))
	assert.Equal(t, todo, sent)
}

func TestAddTodo_SameVersionTwice(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	todo := NewTodo("milk", "2 liters")
	for range 2 {
		ok, err := await(t, f.repo.AddTodo(todo))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Len(t, f.mem.Rows(TableTodo), 1)
	assert.Len(t, f.mem.Rows(TableLookup), 1)
	assert.Zero(t, f.metrics.Count("add.lookup.fail.not.added"))
	assert.Zero(t, f.metrics.Count("add.todo.fail"))
	assert.Equal(t, int64(2), f.metrics.Count("add.lookup.success"))

	revised := todo.Revise("milk", "1 liter")
	ok, err := await(t, f.repo.AddTodo(revised))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, f.mem.Rows(TableTodo), 2)
}

func TestAddTodo_QueueWinsWhenLookupFails(t *testing.T) {
	f := newFixture(t, xqueue.NewMemory(0))
	f.connect(t)
	f.mem.FailTable(TableLookup, errWrite)

	ok, err := await(t, f.repo.AddTodo(NewTodo("milk", "")))
	require.NoError(t, err)
	assert.True(t, ok)
	require.Eventually(t, func() bool { return f.metrics.Count("add.lookup.fail") == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, f.queue.Len())
}

func TestAddTodo_RejectsWhenQueueAndLookupFail(t *testing.T) {
	f := newFixture(t, xqueue.NewMemory(0))
	f.connect(t)
	f.mem.FailTable(TableLookup, errWrite)
	f.queue.Fail(xqueue.ErrFull)

	_, err := await(t, f.repo.AddTodo(NewTodo("milk", "")))
	require.Error(t, err)
	assert.ErrorIs(t, err, errWrite)
	assert.ErrorIs(t, err, xqueue.ErrFull)
	assert.Equal(t, int64(1), f.metrics.Count("add.lookup.fail"))
	assert.Equal(t, int64(1), f.metrics.Count("todo.queue.fail"))
}

func TestAddTodo_WritesWinWhileQueueStalls(t *testing.T) {
	release := make(chan struct{})
	stalled := xqueue.EnqueuerFunc(func(ctx context.Context, _ xqueue.Item) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	f := newFixture(t, stalled)
	t.Cleanup(func() { close(release) })
	f.connect(t)

	ok, err := await(t, f.repo.AddTodo(NewTodo("milk", "")))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, f.mem.Rows(TableLookup), 1)
}

func TestAddTodo_NotAppliedIsInvariant(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.mem.NotApplied(TableTodo, true)

	_, err := await(t, f.repo.AddTodo(NewTodo("milk", "")))
	assert.ErrorIs(t, err, xrepo.ErrInvariant)
	assert.Equal(t, int64(1), f.metrics.Count("add.todo.fail.not.added"))
}

func TestLoadTodo_Latest(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	first := NewTodo("milk", "1 liter")
	_, err := await(t, f.repo.AddTodo(first))
	require.NoError(t, err)
	second := first.Revise("milk", "2 liters")
	_, err = await(t, f.repo.AddTodo(second))
	require.NoError(t, err)

	got, err := await(t, f.repo.LoadTodo(first.ID))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second, *got)
	assert.Equal(t, first.CreatedTime, got.CreatedTime)

	missing, err := await(t, f.repo.LoadTodo("nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLoadTodo_RecoversCreatedTime(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.seed(t, TableTodo, xstore.Row{ColID: "legacy", ColName: "old", ColUpdatedTime: int64(300)})
	f.seed(t, TableLookup,
		xstore.Row{ColID: "legacy", ColUpdatedTime: int64(200)},
		xstore.Row{ColID: "legacy", ColUpdatedTime: int64(100)},
	)

	got, err := await(t, f.repo.LoadTodo("legacy"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(100), got.CreatedTime)
	assert.Equal(t, int64(300), got.UpdatedTime)

	// 第二次读取命中缓存，不再依赖 TodoLookup
	f.mem.FailTable(TableLookup, errWrite)
	got, err = await(t, f.repo.LoadTodo("legacy"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.CreatedTime)
}

func TestLoadTodo_CreatedTimeNotFound(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.seed(t, TableTodo, xstore.Row{ColID: "orphan", ColUpdatedTime: int64(5)})

	_, err := await(t, f.repo.LoadTodo("orphan"))
	assert.ErrorIs(t, err, ErrCreatedTimeNotFound)
}

func TestLoadTodo_StoreError(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.mem.FailTable(TableTodo, errWrite)

	_, err := await(t, f.repo.LoadTodo("x"))
	assert.ErrorIs(t, err, xrepo.ErrStoreOperation)
	assert.Equal(t, int64(1), f.metrics.Count("load.todo.fail"))
	assert.Equal(t, int64(1), f.metrics.Count("memory.error"))
}

func TestLoadTodos(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := await(t, f.repo.AddTodo(NewTodo(name, "")))
		require.NoError(t, err)
	}
	todos, err := await(t, f.repo.LoadTodos())
	require.NoError(t, err)
	assert.Len(t, todos, 3)
	assert.Equal(t, int64(1), f.metrics.Count("load.todos.success"))
}

func TestTodo(t *testing.T) {
	todo := NewTodo("milk", "")
	require.NoError(t, todo.Validate())
	assert.Equal(t, todo.CreatedTime, todo.UpdatedTime)

	next := todo.Revise("milk", "oat")
	assert.Greater(t, next.UpdatedTime, todo.UpdatedTime)
	assert.Equal(t, todo.CreatedTime, next.CreatedTime)

	assert.ErrorIs(t, Todo{ID: "x"}.Validate(), ErrInvalidTodo)

	row := todoFromRow(xstore.Row{
		ColID: "x", ColName: []byte("n"), ColCreatedTime: int32(7),
		ColUpdatedTime: time.UnixMilli(9),
	})
	assert.Equal(t, Todo{ID: "x", Name: "n", CreatedTime: 7, UpdatedTime: 9}, row)
}

func TestDefaultBootstrap(t *testing.T) {
	assert.Len(t, DefaultBootstrap("mongo"), 2)
	assert.Len(t, DefaultBootstrap("clickhouse"), 2)
	assert.Contains(t, DefaultBootstrap("clickhouse")[0], "CREATE TABLE IF NOT EXISTS Todo")
	assert.Nil(t, DefaultBootstrap("cassandra"))
}
