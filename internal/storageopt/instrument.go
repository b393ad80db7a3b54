package storageopt

import (
	"context"
	"time"

	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// Instrumenter 包装驱动的语句执行：观测跨度、计数与慢语句检测。
type Instrumenter struct {
	driver   string
	opts     Options
	logger   xlog.Logger
	detector *SlowQueryDetector
	counters Counters
}

// NewInstrumenter 为名为 driver 的驱动创建埋点。
func NewInstrumenter(driver string, o Options) (*Instrumenter, error) {
	d, err := NewSlowQueryDetector(o)
	if err != nil {
		return nil, err
	}
	return &Instrumenter{
		driver:   driver,
		opts:     o,
		logger:   xlog.OrDefault(o.Logger).With(xlog.Component(driver)),
		detector: d,
	}, nil
}

// Options 返回生效配置。
func (in *Instrumenter) Options() Options {
	return in.opts
}

// Logger 返回带驱动名的日志器。
func (in *Instrumenter) Logger() xlog.Logger {
	return in.logger
}

// Execute 执行 fn 并记录 stmt 的跨度、计数与慢语句。
func (in *Instrumenter) Execute(ctx context.Context, stmt xstore.Statement,
	fn func(ctx context.Context) (*xstore.Result, error)) (*xstore.Result, error) {
	desc := stmt.Describe()
	ctx, span := xmetrics.Start(ctx, in.opts.Observer, xmetrics.SpanOptions{
		Component: in.driver,
		Operation: desc,
		Kind:      xmetrics.KindClient,
	})
	start := time.Now()
	res, err := fn(ctx)
	elapsed := time.Since(start)
	span.End(xmetrics.Result{Err: err})

	in.counters.statements.Add(1)
	switch {
	case err != nil:
		in.counters.errors.Add(1)
		in.logger.Debug(ctx, "statement failed", xlog.Operation(desc), xlog.Err(err), xlog.Duration(elapsed))
	case res != nil && !res.Applied && stmt.Kind != xstore.KindSelect:
		in.counters.notApplied.Add(1)
	}
	if in.detector.MaybeSlowQuery(ctx, SlowQueryInfo{Driver: in.driver, Statement: desc, Duration: elapsed, Err: err}) {
		in.counters.slow.Add(1)
	}
	return res, err
}

// Ping 执行探活 fn 并计数。
func (in *Instrumenter) Ping(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := BoundedContext(ctx, in.opts.PingTimeout)
	defer cancel()
	err := fn(ctx)
	in.counters.IncPing(err != nil)
	return err
}

// Stats 返回计数快照。
func (in *Instrumenter) Stats() Stats {
	return in.counters.Snapshot()
}

// Close 释放慢语句检测器。
func (in *Instrumenter) Close() {
	in.detector.Close()
}
