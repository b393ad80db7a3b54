package xrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/async/xreactor"
	"github.com/omeyang/todokit/pkg/discovery/xdiscovery"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
	"github.com/omeyang/todokit/pkg/resilience/xbreaker"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

const opConnect = "connect"

// Conn 是 Breaker 持有的连接：会话、连接级 CallGuard 与连接时解析出的地址。
type Conn struct {
	Session     xstore.Session
	Guard       *xbreaker.CallGuard
	Endpoints   []xdiscovery.Endpoint
	ConnectedAt time.Time
}

// Connector 执行服务发现、打开会话并运行幂等初始化语句。
// 每个阶段都运行在反应器阻塞执行器上，并在反应器回合中衔接下一阶段。
type Connector struct {
	driver    xstore.Driver
	discovery xdiscovery.Discovery
	service   string
	bootstrap []string
	timeout   time.Duration
	metrics   xmetrics.Sink
	logger    xlog.Logger
}

// NewConnector 创建 Connector。
func NewConnector(driver xstore.Driver, discovery xdiscovery.Discovery, cfg Config,
	metrics xmetrics.Sink, logger xlog.Logger) (*Connector, error) {
	if driver == nil {
		return nil, ErrNilDriver
	}
	if discovery == nil {
		return nil, ErrNilDiscovery
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &Connector{
		driver:    driver,
		discovery: discovery,
		service:   cfg.Service,
		bootstrap: bootstrapStatements(cfg.Bootstrap),
		timeout:   timeout,
		metrics:   xmetrics.OrNop(metrics),
		logger:    xlog.OrDefault(logger),
	}, nil
}

// bootstrapStatements 去掉空语句。
func bootstrapStatements(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Connect 依次执行 lookup、open、initialize，全部成功时以 *Conn 结算（Guard 为空，由调用方设置）。
func (c *Connector) Connect(r *xreactor.Reactor) *xpromise.Promise[*Conn] {
	opened := xpromise.FlatMap(c.lookup(r), func(eps []xdiscovery.Endpoint) *xpromise.Promise[*Conn] {
		return c.open(r, eps)
	})
	return xpromise.FlatMap(opened, func(conn *Conn) *xpromise.Promise[*Conn] {
		return c.initialize(r, conn)
	})
}

func (c *Connector) lookup(r *xreactor.Reactor) *xpromise.Promise[[]xdiscovery.Endpoint] {
	return xreactor.Blocking(r, func(ctx context.Context) ([]xdiscovery.Endpoint, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		eps, err := c.discovery.Lookup(ctx, c.service)
		if err == nil && len(eps) == 0 {
			err = xdiscovery.ErrNoEndpoints
		}
		if err != nil {
			c.metrics.Increment("discovery.service.fail")
			return nil, xpromise.NewError(opConnect, ErrDiscovery,
				fmt.Sprintf("lookup %q failed", c.service), err)
		}
		c.metrics.Increment("discovery.service.success")
		return eps, nil
	})
}

func (c *Connector) open(r *xreactor.Reactor, eps []xdiscovery.Endpoint) *xpromise.Promise[*Conn] {
	return xreactor.Blocking(r, func(ctx context.Context) (*Conn, error) {
		addrs := make([]string, len(eps))
		for i, ep := range eps {
			addrs[i] = ep.Address()
		}
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		session, err := c.driver.Connect(ctx, addrs)
		if err != nil {
			return nil, xpromise.NewError(opConnect, ErrReconnect,
				"unable to open "+c.driver.Name()+" session", err)
		}
		c.logger.Info(ctx, "xrepo: session opened",
			slog.String("store", c.driver.Name()), slog.Any("endpoints", addrs))
		return &Conn{Session: session, Endpoints: eps, ConnectedAt: time.Now()}, nil
	})
}

// initialize 执行初始化语句，任一失败时关闭会话并拒绝。
func (c *Connector) initialize(r *xreactor.Reactor, conn *Conn) *xpromise.Promise[*Conn] {
	return xreactor.Blocking(r, func(ctx context.Context) (*Conn, error) {
		for _, cmd := range c.bootstrap {
			if err := c.run(ctx, conn.Session, cmd); err != nil {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
				closeErr := conn.Session.Close(closeCtx)
				cancel()
				return nil, xpromise.NewError(opConnect, ErrReconnect,
					"unable to initialize "+c.driver.Name()+" session", errors.Join(err, closeErr))
			}
		}
		return conn, nil
	})
}

func (c *Connector) run(ctx context.Context, session xstore.Session, cmd string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	res, err := session.Execute(ctx, xstore.Command(cmd))
	if err != nil {
		c.logger.Error(ctx, "xrepo: bootstrap statement failed",
			slog.String("statement", cmd), xlog.Err(err))
		return err
	}
	if res != nil && !res.Applied {
		c.logger.Info(ctx, "xrepo: bootstrap statement not applied", slog.String("statement", cmd))
	}
	return nil
}
