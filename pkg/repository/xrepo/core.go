package xrepo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/async/xreactor"
	"github.com/omeyang/todokit/pkg/discovery/xdiscovery"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
	"github.com/omeyang/todokit/pkg/resilience/xbreaker"
	"github.com/omeyang/todokit/pkg/resilience/xhealth"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// Core 是弹性仓储的公共核心。
type Core struct {
	name       string
	store      string
	cfg        Config
	connector  *Connector
	reactor    *xreactor.Reactor
	ownReactor bool
	holder     *xbreaker.Holder[*Conn]
	metrics    xmetrics.Sink
	health     *xhealth.State
	logger     xlog.Logger

	storeErrors  atomic.Int64 // 自上次连接以来的存储错误
	connFailures atomic.Int64 // 连续重连失败

	mu         sync.Mutex
	connecting *xpromise.Promise[bool]
	cancels    []xreactor.Cancel
	started    bool
	closed     bool
}

// New 创建 Core。Breaker 初始为 Open，需 Start 或 Connect 后才可用。
func New(driver xstore.Driver, discovery xdiscovery.Discovery, opts ...Option) (*Core, error) {
	o := &options{name: "repo", config: DefaultConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if driver == nil {
		return nil, ErrNilDriver
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	c := &Core{
		name:    o.name,
		store:   driver.Name(),
		cfg:     o.config,
		holder:  xbreaker.NewHolder[*Conn](),
		metrics: xmetrics.OrNop(o.metrics),
		health:  o.health,
		logger:  xlog.OrDefault(o.logger).With(xlog.Component(o.name)),
	}
	if c.health == nil {
		c.health = xhealth.New()
	}

	connector, err := NewConnector(driver, discovery, c.cfg, c.metrics, c.logger)
	if err != nil {
		return nil, err
	}
	c.connector = connector

	c.reactor = o.reactor
	if c.reactor == nil {
		r, err := xreactor.New(
			xreactor.WithName(o.name+".reactor"),
			xreactor.WithLogger(c.logger),
			xreactor.WithMetrics(c.metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("xrepo: create reactor: %w", err)
		}
		c.reactor = r
		c.ownReactor = true
	}
	return c, nil
}

// Name 返回仓储名。
func (c *Core) Name() string { return c.name }

// Store 返回存储驱动名，用作指标前缀。
func (c *Core) Store() string { return c.store }

// Config 返回配置副本。
func (c *Core) Config() Config { return c.cfg }

// Reactor 返回仓储使用的反应器。
func (c *Core) Reactor() *xreactor.Reactor { return c.reactor }

// Metrics 返回指标汇。
func (c *Core) Metrics() xmetrics.Sink { return c.metrics }

// Logger 返回日志记录器。
func (c *Core) Logger() xlog.Logger { return c.logger }

// Health 返回服务健康标记。
func (c *Core) Health() *xhealth.State { return c.health }

// Breaker 返回当前 Breaker 快照。
func (c *Core) Breaker() *xbreaker.Breaker[*Conn] { return c.holder.Load() }

// IsConnected 报告当前 Breaker 是否可用。
func (c *Core) IsConnected() bool { return c.holder.Load().IsOperational() }

// StoreErrors 返回自上次成功连接以来的存储错误数。
func (c *Core) StoreErrors() int64 { return c.storeErrors.Load() }

// ConnectFailures 返回连续重连失败次数。
func (c *Core) ConnectFailures() int64 { return c.connFailures.Load() }

// Start 启动反应器，按配置延迟发起首次连接，并在预热后注册周期健康检查。幂等。
func (c *Core) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	c.reactor.Start()

	if c.cfg.ConnectOnStart {
		if err := c.reactor.Defer(func() { c.Connect() }); err != nil {
			c.logger.Error(c.reactor.Context(), "xrepo: schedule initial connect failed", xlog.Err(err))
		}
	}
	c.cancels = append(c.cancels, c.reactor.RunAfter(c.cfg.WarmUp, c.registerHealthCheck))
}

func (c *Core) registerHealthCheck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.logger.Info(c.reactor.Context(), "xrepo: registering health check and recovery",
		xlog.Duration(c.cfg.CheckInterval))
	c.cancels = append(c.cancels, c.reactor.Repeating(c.cfg.CheckInterval, c.HealthCheck))
}

// HealthCheck 在 Breaker 不可用时清理旧连接并重连。Breaker 可用时为空操作，
// 因此重叠触发是安全的。
func (c *Core) HealthCheck() {
	snap := c.holder.Load()
	snap.IfBroken(func() {
		c.metrics.Increment("repo.breaker.broken")
		if !snap.IsOpen() && c.holder.CompareAndSwap(snap, xbreaker.Open[*Conn]()) {
			c.logger.Warn(c.reactor.Context(), "xrepo: connection degraded, cleaning up",
				slog.Int64("store_errors", c.storeErrors.Load()))
			c.releaseAsync(snap)
		}
		c.Connect()
	})
}

// Connect 通过 Connector 建立新连接并切换到 Operational。
// 已有连接过程进行中时返回同一个 Promise。
func (c *Core) Connect() *xpromise.Promise[bool] {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return xpromise.RejectedWith[bool](xpromise.NewError(opConnect, ErrClosed, "", nil))
	}
	if c.connecting != nil {
		p := c.connecting
		c.mu.Unlock()
		return p
	}
	p, s := xpromise.Pend[bool]()
	c.connecting = p
	c.mu.Unlock()

	c.metrics.Increment("connect.called")
	pending := c.connector.Connect(c.reactor)
	pending.Finally(func(conn *Conn, err error) {
		if err == nil {
			err = c.install(conn)
		}
		c.mu.Lock()
		c.connecting = nil
		closed := c.closed
		c.mu.Unlock()

		if err != nil {
			if !closed {
				c.onConnectFailed(err)
			}
			s.Reject(err)
			return
		}
		c.onConnected()
		s.Resolve(true)
	})
	pending.Invoke()
	return p
}

// install 为新连接创建 CallGuard，清零错误计数并替换 Breaker。
func (c *Core) install(conn *Conn) error {
	conn.Guard = xbreaker.NewCallGuard(c.store+".guard",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(c.cfg.GuardFailures)),
		xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
			c.metrics.Increment(c.store + ".guard." + to.String())
			c.logger.Warn(c.reactor.Context(), "xrepo: call guard state changed",
				slog.String("guard", name), slog.String("from", from.String()), slog.String("to", to.String()))
		}),
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		defer cancel()
		_ = conn.Session.Close(ctx)
		return xpromise.NewError(opConnect, ErrClosed, "", nil)
	}
	c.storeErrors.Store(0)
	prev := c.holder.Store(xbreaker.Operational(conn, c.cfg.ErrorThreshold, c.isBroken))
	if prev != nil && !prev.IsOpen() {
		c.releaseAsync(prev)
	}
	return nil
}

// isBroken 是连接的健康判定。
func (c *Core) isBroken(conn *Conn) bool {
	return c.storeErrors.Load() > c.cfg.ErrorThreshold ||
		(conn.Guard != nil && conn.Guard.Tripped()) ||
		conn.Session.Closed()
}

func (c *Core) onConnected() {
	c.connFailures.Store(0)
	c.metrics.RecordLevel("repo.not.connected", 0)
	c.logger.Info(c.reactor.Context(), "xrepo: connected", slog.String("store", c.store))
	if c.health.RecoverFor(c.name) {
		c.metrics.Increment("repo.connect.recover")
		c.logger.Info(c.reactor.Context(), "xrepo: repository recovered")
	}
}

func (c *Core) onConnectFailed(err error) {
	n := c.connFailures.Add(1)
	c.logger.Error(c.reactor.Context(), "xrepo: not connected to store",
		slog.String("store", c.store), xlog.Count(n), xlog.Err(err))
	c.metrics.RecordLevel("repo.not.connected", n)
	c.metrics.Increment("repo.connect.error")
	c.metrics.Increment("repo.connect.error." + ErrorKind(err))
	if n >= c.cfg.FailureThreshold && c.health.SetFailingFor(c.name, err) {
		c.metrics.Increment("repo.connect.error.fatal")
		c.logger.Error(c.reactor.Context(), "xrepo: reconnect attempts exhausted, marking repository as failing",
			xlog.Count(n))
	}
}

// release 关闭连接持有的会话。
func (c *Core) release(ctx context.Context) func(*Conn) error {
	return func(conn *Conn) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
		return conn.Session.Close(ctx)
	}
}

// releaseAsync 在阻塞执行器上释放 b 的资源，不占用反应器回合。
func (c *Core) releaseAsync(b *xbreaker.Breaker[*Conn]) {
	xreactor.Blocking(c.reactor, func(ctx context.Context) (bool, error) {
		return b.Cleanup(c.release(context.WithoutCancel(ctx))), nil
	})
}

// Close 取消周期任务、释放当前连接，并停止自建的反应器。
func (c *Core) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if prev := c.holder.Store(xbreaker.Open[*Conn]()); prev != nil {
		prev.Cleanup(c.release(ctx))
	}
	c.logger.Info(ctx, "xrepo: closed", slog.String("store", c.store))
	if c.ownReactor {
		return c.reactor.Stop(ctx)
	}
	return nil
}
