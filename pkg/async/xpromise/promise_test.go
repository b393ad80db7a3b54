package xpromise

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBoom = errors.New("boom")

func TestSettler_FirstWins(t *testing.T) {
	p, s := Pend[int]()
	assert.Equal(t, Pending, p.State())

	assert.True(t, s.Resolve(1))
	assert.False(t, s.Resolve(2))
	assert.False(t, s.Reject(errBoom))

	assert.Equal(t, Resolved, p.State())
	assert.Equal(t, 1, p.Value())
	assert.NoError(t, p.Err())
}

func TestSettler_RejectNil(t *testing.T) {
	p, s := Pend[string]()
	assert.True(t, s.Reject(nil))
	assert.ErrorIs(t, p.Err(), ErrRejectedNil)
	assert.Equal(t, Rejected, p.State())
}

func TestContinuations_OrderAndOnce(t *testing.T) {
	p, s := Pend[int]()
	var got []string
	p.Then(func(int) { got = append(got, "then1") }).
		Catch(func(error) { got = append(got, "catch") }).
		Finally(func(v int, err error) { got = append(got, "finally") }).
		Then(func(int) { got = append(got, "then2") })

	s.Resolve(7)
	s.Resolve(8)
	assert.Equal(t, []string{"then1", "finally", "then2"}, got)

	// 结算后注册立即执行
	p.Then(func(v int) { got = append(got, "late") })
	assert.Equal(t, "late", got[len(got)-1])
	assert.Len(t, got, 4)
}

func TestContinuations_RegisteredWhileFiring(t *testing.T) {
	p, s := Pend[int]()
	var got []int
	p.Then(func(int) {
		got = append(got, 1)
		p.Then(func(int) { got = append(got, 3) })
	})
	p.Then(func(int) { got = append(got, 2) })
	s.Resolve(0)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestContinuations_PanicRecovered(t *testing.T) {
	p, s := Pend[int]()
	ran := false
	p.Then(func(int) { panic("bad continuation") })
	p.Then(func(int) { ran = true })
	s.Resolve(1)
	assert.True(t, ran)
}

func TestNew_RunsImmediately(t *testing.T) {
	calls := 0
	p := New(func(s Settler[string]) {
		calls++
		s.Resolve("ok")
	})
	p.Invoke()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "ok", p.Value())
}

func TestLazy_ExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	p := Lazy(func(s Settler[int]) {
		mu.Lock()
		calls++
		mu.Unlock()
		s.Resolve(42)
	})
	assert.Equal(t, Pending, p.State())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Invoke()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 42, p.Value())
}

func TestSetupPanic(t *testing.T) {
	p := New(func(Settler[int]) { panic("setup failed") })
	assert.ErrorIs(t, p.Err(), ErrPanic)
	assert.Contains(t, p.Err().Error(), "setup failed")

	q := New[int](nil)
	assert.ErrorIs(t, q.Err(), ErrNilSetup)
}

func TestAwait(t *testing.T) {
	p, s := Pend[int]()
	go func() {
		time.Sleep(5 * time.Millisecond)
		s.Resolve(9)
	}()
	v, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	never, _ := Pend[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = never.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = RejectedWith[int](errBoom).Await(context.Background())
	assert.ErrorIs(t, err, errBoom)
}

func TestMap(t *testing.T) {
	invoked := false
	src := Lazy(func(s Settler[int]) {
		invoked = true
		s.Resolve(20)
	})
	doubled := Map(src, func(v int) (int, error) { return v * 2, nil })
	assert.False(t, invoked)

	v, err := doubled.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, invoked)
	assert.Equal(t, 40, v)

	failed := Map(ResolvedWith(1), func(int) (string, error) { return "", errBoom })
	assert.ErrorIs(t, failed.Err(), errBoom)

	propagated := Map(RejectedWith[int](errBoom), func(int) (int, error) { return 0, nil })
	assert.ErrorIs(t, propagated.Err(), errBoom)

	panicked := Map(ResolvedWith(1), func(int) (int, error) { panic("map failed") })
	assert.ErrorIs(t, panicked.Err(), ErrPanic)
}

func TestFlatMap(t *testing.T) {
	lookup := ResolvedWith("db:27017")
	connected := FlatMap(lookup, func(addr string) *Promise[int] {
		return New(func(s Settler[int]) { s.Resolve(len(addr)) })
	})
	v, err := connected.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	skipped := false
	failed := FlatMap(RejectedWith[string](errBoom), func(string) *Promise[int] {
		skipped = true
		return ResolvedWith(1)
	})
	assert.ErrorIs(t, failed.Err(), errBoom)
	assert.False(t, skipped)

	nilStage := FlatMap(ResolvedWith(1), func(int) *Promise[int] { return nil })
	assert.ErrorIs(t, nilStage.Err(), ErrNilSetup)

	panicked := FlatMap(ResolvedWith(1), func(int) *Promise[int] { panic("stage failed") })
	assert.ErrorIs(t, panicked.Err(), ErrPanic)

	lazyNext := FlatMap(ResolvedWith(2), func(v int) *Promise[int] {
		return Lazy(func(s Settler[int]) { s.Resolve(v * 10) })
	})
	assert.Equal(t, 20, lazyNext.Value())
}

func TestSubscribe(t *testing.T) {
	var r Result = ResolvedWith("v")
	var got any
	r.Subscribe(func(v any, err error) { got = v })
	assert.Equal(t, "v", got)

	RejectedWith[string](errBoom).Subscribe(func(v any, err error) {
		assert.Nil(t, v)
		assert.ErrorIs(t, err, errBoom)
	})
}

func TestError(t *testing.T) {
	kind := errors.New("not connected")
	cause := errors.New("dial tcp: refused")

	err := NewError("add.todo", kind, "", cause)
	assert.Equal(t, "add.todo: not connected: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, kind)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, kind, KindOf(err))
	assert.Nil(t, KindOf(cause))

	assert.Equal(t, "msg", NewError("", nil, "msg", nil).Error())
	assert.Equal(t, "op: failed", NewError("op", nil, "", nil).Error())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "State(9)", State(9).String())
}
