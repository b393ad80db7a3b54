package xrun

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/todokit/pkg/observability/xlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quiet() []Option {
	return []Option{WithLogger(xlog.Discard()), WithName("test")}
}

func TestGroup_ErrorCancelsOthers(t *testing.T) {
	boom := errors.New("boom")
	g, _ := NewGroup(context.Background(), quiet()...)
	var stopped atomic.Bool
	g.GoNamed("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return ctx.Err()
	})
	g.Go(func(context.Context) error { return boom })

	assert.ErrorIs(t, g.Wait(), boom)
	assert.True(t, stopped.Load())
}

func TestGroup_NilFunc(t *testing.T) {
	g, _ := NewGroup(context.Background(), quiet()...)
	g.Go(nil)
	assert.ErrorIs(t, g.Wait(), ErrNilFunc)
}

func TestGroup_CancelCause(t *testing.T) {
	done := errors.New("done")
	g, _ := NewGroup(context.Background(), quiet()...)
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	g.Cancel(done)
	assert.ErrorIs(t, g.Wait(), done)

	g, ctx := NewGroup(nil, quiet()...) //nolint:staticcheck // nil context is normalized
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	g.Cancel(nil)
	assert.NoError(t, g.Wait())
	assert.Error(t, ctx.Err())
}

func TestGroup_InternalCanceledIsReturned(t *testing.T) {
	g, _ := NewGroup(context.Background(), quiet()...)
	g.Go(func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, g.Wait(), context.Canceled)
}

func TestRun_Signal(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	ctx := withInjectedSignals(context.Background(), sigs)
	sigs <- syscall.SIGTERM

	var stopped atomic.Bool
	err := Run(ctx, quiet(), Lifecycle("repo", nil, func(context.Context) error {
		stopped.Store(true)
		return nil
	}, time.Second))

	var sigErr *SignalError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, syscall.SIGTERM, sigErr.Signal)
	assert.ErrorIs(t, err, ErrSignal)
	assert.True(t, stopped.Load())
}

func TestRun_WithoutSignalHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := append(quiet(), WithoutSignalHandler(), WithSignals(syscall.SIGUSR1))
	errc := make(chan error, 1)
	go func() {
		errc <- Run(ctx, opts, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestLifecycle(t *testing.T) {
	var started atomic.Bool
	var deadline atomic.Bool
	stopErr := errors.New("close failed")
	svc := Lifecycle("todo", func() { started.Store(true) }, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadline.Store(ok)
		require.NoError(t, ctx.Err())
		return stopErr
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc(ctx)
	assert.ErrorIs(t, err, stopErr)
	assert.Contains(t, err.Error(), "todo: ")
	assert.True(t, started.Load())
	assert.True(t, deadline.Load())

	assert.NoError(t, Lifecycle("noop", nil, nil, 0)(ctx))
}

type stopper struct{ stopped atomic.Bool }

func (s *stopper) Stop() error {
	s.stopped.Store(true)
	return nil
}

func TestUntil(t *testing.T) {
	s := &stopper{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, Until("watch", s)(ctx))
	assert.True(t, s.stopped.Load())
	assert.ErrorIs(t, Until("watch", nil)(ctx), ErrNilFunc)
	assert.ErrorIs(t, Named("x", nil)(ctx), ErrNilFunc)
}

func TestSignalError(t *testing.T) {
	assert.Equal(t, "xrun: received signal <nil>", (&SignalError{}).Error())
	assert.Len(t, DefaultSignals(), 4)
}
