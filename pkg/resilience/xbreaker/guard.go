package xbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CallGuard 以 gobreaker 保护单个连接上的存储调用。
type CallGuard struct {
	name          string
	tripPolicy    TripPolicy
	isSuccessful  func(error) bool
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)

	cb *gobreaker.CircuitBreaker[any]
}

// GuardOption 配置 CallGuard。
type GuardOption func(*CallGuard)

// WithTripPolicy 设置熔断判定策略，默认连续失败 5 次。
func WithTripPolicy(p TripPolicy) GuardOption {
	return func(g *CallGuard) {
		if p != nil {
			g.tripPolicy = p
		}
	}
}

// WithSuccessPolicy 设置成功判定，默认 err == nil 为成功。
func WithSuccessPolicy(fn func(error) bool) GuardOption {
	return func(g *CallGuard) {
		g.isSuccessful = fn
	}
}

// WithTimeout 设置 Open 转 HalfOpen 的等待时间，默认 60 秒。
func WithTimeout(d time.Duration) GuardOption {
	return func(g *CallGuard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithInterval 设置 Closed 状态下清零统计的周期，默认 0（不清零）。
func WithInterval(d time.Duration) GuardOption {
	return func(g *CallGuard) {
		g.interval = d
	}
}

// WithMaxRequests 设置 HalfOpen 状态下允许通过的请求数，默认 1。
func WithMaxRequests(n uint32) GuardOption {
	return func(g *CallGuard) {
		if n > 0 {
			g.maxRequests = n
		}
	}
}

// WithOnStateChange 设置状态变化回调。
func WithOnStateChange(fn func(name string, from, to State)) GuardOption {
	return func(g *CallGuard) {
		g.onStateChange = fn
	}
}

// NewCallGuard 创建 CallGuard。
func NewCallGuard(name string, opts ...GuardOption) *CallGuard {
	g := &CallGuard{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     60 * time.Second,
		maxRequests: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	st := gobreaker.Settings{
		Name:        g.name,
		MaxRequests: g.maxRequests,
		Interval:    g.interval,
		Timeout:     g.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return g.tripPolicy.ReadyToTrip(counts)
		},
	}
	if g.isSuccessful != nil {
		st.IsSuccessful = g.isSuccessful
	}
	if g.onStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			g.onStateChange(name, from, to)
		}
	}
	g.cb = gobreaker.NewCircuitBreaker[any](st)
	return g
}

// Do 执行受保护的调用。熔断时不执行 fn，返回包装了 ErrGuardOpen 的 *GuardError。
func (g *CallGuard) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := Execute(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute 是 Do 的泛型版本。
func Execute[T any](ctx context.Context, g *CallGuard, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	result, err := g.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, wrapGuardError(err, g.name, g.cb.State())
	}
	typed, _ := result.(T)
	return typed, nil
}

// Tripped 报告是否处于熔断（Open）状态。
func (g *CallGuard) Tripped() bool {
	return g.cb.State() == StateOpen
}

// State 返回当前状态。
func (g *CallGuard) State() State {
	return g.cb.State()
}

// Counts 返回当前统计。
func (g *CallGuard) Counts() Counts {
	return g.cb.Counts()
}

// Name 返回名称。
func (g *CallGuard) Name() string {
	return g.name
}
