package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/todokit/pkg/observability/xlog"
)

// Service 是阻塞运行直到 ctx 取消的服务。
type Service func(ctx context.Context) error

// Group 并发运行服务，任一服务出错时取消其余服务。
// Go 与 Cancel 可并发调用，Wait 只应调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *options
	logger   xlog.Logger
}

// NewGroup 创建 Group，返回的 context 在任一服务出错或 Cancel 时取消。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)
	return &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		opts:     o,
		logger:   xlog.OrDefault(o.logger).With(xlog.Component(o.name)),
	}, egCtx
}

// Go 运行匿名服务。
func (g *Group) Go(fn Service) {
	g.GoNamed("", fn)
}

// GoNamed 运行服务并在日志中记录名称。
func (g *Group) GoNamed(name string, fn Service) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		svc := slog.String("service", name)
		g.logger.Debug(g.ctx, "service starting", svc)
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Warn(g.ctx, "service exited with error", svc, xlog.Err(err))
		} else {
			g.logger.Debug(g.ctx, "service stopped", svc)
		}
		return err
	})
}

// Cancel 取消所有服务，cause 非 nil 时成为 Wait 的返回值。
// cause 不应包装 context.Canceled，否则会被 Wait 视为普通取消。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的 context。
func (g *Group) Context() context.Context { return g.ctx }

// Wait 等待所有服务退出，返回第一个错误。Group 被主动取消时返回取消原因，
// 无原因的取消返回 nil；服务内部产生的 context.Canceled 原样返回。
func (g *Group) Wait() error {
	defer g.cancel(nil)
	err := g.eg.Wait()

	cancelled := g.causeCtx.Err() != nil
	cause := context.Cause(g.causeCtx)
	explicit := cancelled && cause != nil && !errors.Is(cause, context.Canceled)

	switch {
	case errors.Is(err, context.Canceled) && cancelled:
		if explicit {
			return cause
		}
		return nil
	case err == nil && explicit:
		return cause
	default:
		return err
	}
}

// Run 运行服务直到全部退出，默认在收到 DefaultSignals 时以 *SignalError 取消。
func Run(ctx context.Context, opts []Option, services ...Service) error {
	g, _ := NewGroup(ctx, opts...)
	if !g.opts.noSignalHandler {
		g.GoNamed("signal", g.watchSignals)
	}
	for _, svc := range services {
		g.Go(svc)
	}
	return g.Wait()
}

func (g *Group) watchSignals(ctx context.Context) error {
	signals := g.opts.signals
	if len(signals) == 0 {
		signals = DefaultSignals()
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	defer signal.Stop(ch)

	var sig os.Signal
	select {
	case sig = <-injectedSignals(ctx):
	case sig = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.logger.Info(ctx, "received signal", slog.String("signal", sig.String()))
	g.cancel(&SignalError{Signal: sig})
	return nil
}

type signalsKey struct{}

// injectedSignals 返回测试经 context 注入的信号通道，生产环境为 nil。
func injectedSignals(ctx context.Context) <-chan os.Signal {
	c, _ := ctx.Value(signalsKey{}).(<-chan os.Signal)
	return c
}

func withInjectedSignals(ctx context.Context, c <-chan os.Signal) context.Context {
	return context.WithValue(ctx, signalsKey{}, c)
}
