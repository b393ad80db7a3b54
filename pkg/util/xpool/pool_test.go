package xpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/todokit/pkg/observability/xlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// ants 包级默认池的后台 goroutine
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*poolCommon).purgeStaleWorkers"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*poolCommon).ticktock"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*Pool).purgeStaleWorkers"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*Pool).ticktock"),
	)
}

func TestNew_InvalidArgs(t *testing.T) {
	_, err := New[int](1, 1, nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = New(0, 1, func(int) {})
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = New(1, 0, func(int) {})
	assert.ErrorIs(t, err, ErrInvalidQueueSize)
}

func TestPool_Basic(t *testing.T) {
	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(5)

	pool, err := New(2, 10, func(int) {
		processed.Add(1)
		wg.Done()
	})
	require.NoError(t, err)
	defer func() { _ = pool.Close() }()

	for i := range 5 {
		require.NoError(t, pool.Submit(i))
	}
	wg.Wait()
	assert.Equal(t, int32(5), processed.Load())
}

func TestPool_SingleWorkerOrdered(t *testing.T) {
	var mu sync.Mutex
	var got []int

	pool, err := New(1, 100, func(n int) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})
	require.NoError(t, err)

	for i := range 50 {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Close())

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	pool, err := New(1, 1, func(int) { <-release })
	require.NoError(t, err)

	require.NoError(t, pool.Submit(1))
	// 等待 worker 取走第一个任务
	require.Eventually(t, func() bool { return pool.Stats().Pending == 0 }, time.Second, time.Millisecond)
	require.NoError(t, pool.Submit(2))
	assert.ErrorIs(t, pool.Submit(3), ErrQueueFull)

	close(release)
	require.NoError(t, pool.Close())
	st := pool.Stats()
	assert.Equal(t, int64(2), st.Executed)
	assert.Equal(t, int64(1), st.Dropped)
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool, err := New(1, 1, func(int) {})
	require.NoError(t, err)
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)

	//nolint:staticcheck // 验证 nil context
	assert.ErrorIs(t, pool.Shutdown(nil), ErrNilContext)
}

func TestPool_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	pool, err := New(1, 1, func(int) { <-release })
	require.NoError(t, err)
	require.NoError(t, pool.Submit(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	<-pool.Done()
}

func TestPool_PanicRecovered(t *testing.T) {
	var recovered atomic.Value
	pool, err := New(1, 4, func(n int) {
		if n == 1 {
			panic("boom")
		}
	}, WithLogger(xlog.Discard()), WithName("serial"), WithPanicHandler(func(r any) {
		recovered.Store(r)
	}))
	require.NoError(t, err)

	require.NoError(t, pool.Submit(1))
	require.NoError(t, pool.Submit(2))
	require.NoError(t, pool.Close())

	assert.Equal(t, "boom", recovered.Load())
	st := pool.Stats()
	assert.Equal(t, int64(2), st.Executed)
	assert.Equal(t, int64(1), st.Panics)
}

func TestExecutor(t *testing.T) {
	_, err := NewExecutor(0)
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	exec, err := NewExecutor(1, WithLogger(xlog.Discard()))
	require.NoError(t, err)
	assert.Equal(t, 1, exec.Cap())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, exec.Go(func() {
		close(started)
		<-release
	}))
	<-started
	assert.Equal(t, 1, exec.Running())
	assert.ErrorIs(t, exec.Go(func() {}), ErrExecutorOverload)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, exec.Shutdown(ctx))
	assert.ErrorIs(t, exec.Go(func() {}), ErrPoolStopped)
}

func TestExecutor_PanicHandler(t *testing.T) {
	got := make(chan any, 1)
	exec, err := NewExecutor(2, WithLogger(xlog.Discard()), WithPanicHandler(func(r any) { got <- r }))
	require.NoError(t, err)

	require.NoError(t, exec.Go(func() { panic("bad") }))
	assert.Equal(t, "bad", <-got)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, exec.Shutdown(ctx))
}
