package xqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/todokit/pkg/async/xreactor"
	"github.com/omeyang/todokit/pkg/observability/xlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*poolCommon).purgeStaleWorkers"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*poolCommon).ticktock"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*Pool).purgeStaleWorkers"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*Pool).ticktock"),
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).tryDial"),
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/maintnotifications.(*CircuitBreakerManager).cleanupLoop"),
	)
}

func setupMiniredis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestItem(t *testing.T) {
	it := NewItem("todo", []byte("x"))
	assert.NotEmpty(t, it.Key)
	assert.NoError(t, it.Validate())

	withH := it.WithHeader("op", "add")
	assert.Nil(t, it.Headers)
	assert.Equal(t, "add", withH.Headers["op"])

	assert.ErrorIs(t, Item{}.Validate(), ErrEmptyTopic)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(2)
	require.NoError(t, q.Enqueue(ctx, NewItem("a", nil)))
	require.NoError(t, q.Enqueue(ctx, NewItem("b", nil)))
	assert.ErrorIs(t, q.Enqueue(ctx, NewItem("a", nil)), ErrFull)
	assert.Len(t, q.Items("a"), 1)
	assert.Len(t, q.Items(""), 2)

	assert.Len(t, q.Drain(), 2)
	assert.Equal(t, 0, q.Len())

	boom := errors.New("broker down")
	q.Fail(boom)
	assert.ErrorIs(t, q.Enqueue(ctx, NewItem("a", nil)), boom)
	q.Fail(nil)

	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Enqueue(ctx, NewItem("a", nil)), ErrClosed)
}

func TestRedisStream(t *testing.T) {
	client := setupMiniredis(t)
	ctx := context.Background()

	_, err := NewRedisStream(nil)
	assert.ErrorIs(t, err, ErrNilClient)

	s, err := NewRedisStream(client, WithStreamPrefix("t:"), WithMaxLen(100))
	require.NoError(t, err)
	assert.Equal(t, "t:todo", s.Stream("todo"))

	item := NewItem("todo", []byte(`{"id":"a"}`)).WithHeader("op", "add")
	require.NoError(t, s.Enqueue(ctx, item))
	assert.ErrorIs(t, s.Enqueue(ctx, Item{}), ErrEmptyTopic)

	msgs, err := client.XRange(ctx, "t:todo", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, item.Key, msgs[0].Values[FieldKey])
	assert.Equal(t, `{"id":"a"}`, msgs[0].Values[FieldPayload])
	assert.Equal(t, "add", msgs[0].Values["h:op"])
}

func TestRetrying(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	flaky := EnqueuerFunc(func(context.Context, Item) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	q := Retrying(flaky, 3, time.Millisecond, WithRetryLogger(xlog.Discard()))
	require.NoError(t, q.Enqueue(ctx, NewItem("a", nil)))
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	q = Retrying(flaky, 2, time.Millisecond, WithRetryLogger(xlog.Discard()))
	assert.EqualError(t, q.Enqueue(ctx, NewItem("a", nil)), "transient")
	assert.Equal(t, int32(2), calls.Load())

	var invalid atomic.Int32
	mem := NewMemory(0)
	q = Retrying(EnqueuerFunc(func(ctx context.Context, it Item) error {
		invalid.Add(1)
		return mem.Enqueue(ctx, it)
	}), 5, time.Millisecond, WithRetryLogger(xlog.Discard()))
	assert.ErrorIs(t, q.Enqueue(ctx, Item{}), ErrEmptyTopic)
	assert.Equal(t, int32(1), invalid.Load())

	assert.ErrorIs(t, Retrying(nil, 1, 0).Enqueue(ctx, NewItem("a", nil)), ErrNilEnqueuer)
}

func TestRateLimited(t *testing.T) {
	client := setupMiniredis(t)
	ctx := context.Background()
	mem := NewMemory(0)

	q := RateLimited(mem, client, redis_rate.PerMinute(1))
	require.NoError(t, q.Enqueue(ctx, NewItem("todo", nil)))
	assert.ErrorIs(t, q.Enqueue(ctx, NewItem("todo", nil)), ErrRateLimited)
	// 限流按主题独立计数
	require.NoError(t, q.Enqueue(ctx, NewItem("sub", nil)))
	assert.Equal(t, 2, mem.Len())
}

func TestAsyncEnqueue(t *testing.T) {
	r, err := xreactor.New(xreactor.WithLogger(xlog.Discard()))
	require.NoError(t, err)
	r.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mem := NewMemory(0)
	ok, err := AsyncEnqueue(r, mem, NewItem("todo", nil)).Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, mem.Len())

	mem.Fail(errors.New("down"))
	_, err = AsyncEnqueue(r, mem, NewItem("todo", nil)).Await(ctx)
	assert.EqualError(t, err, "down")

	_, err = AsyncEnqueue(r, nil, NewItem("todo", nil)).Await(ctx)
	assert.ErrorIs(t, err, ErrNilEnqueuer)
}
