package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/omeyang/todokit/pkg/async/xreactor"
	"github.com/omeyang/todokit/pkg/config/xconf"
	"github.com/omeyang/todokit/pkg/discovery/xdiscovery"
	"github.com/omeyang/todokit/pkg/mq/xkafka"
	"github.com/omeyang/todokit/pkg/mq/xpulsar"
	"github.com/omeyang/todokit/pkg/mq/xqueue"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/observability/xmetrics"
	"github.com/omeyang/todokit/pkg/repository/assetrepo"
	"github.com/omeyang/todokit/pkg/repository/subrepo"
	"github.com/omeyang/todokit/pkg/repository/todorepo"
	"github.com/omeyang/todokit/pkg/repository/xrepo"
	"github.com/omeyang/todokit/pkg/resilience/xhealth"
	"github.com/omeyang/todokit/pkg/storage/xclickhouse"
	"github.com/omeyang/todokit/pkg/storage/xmongo"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// etcdDialTimeout 限制 etcd 客户端建连。
const etcdDialTimeout = 5 * time.Second

// env 是一次命令执行所需的全部组件。
type env struct {
	settings xconf.Settings
	logger   xlog.LoggerWithLevel
	metrics  *xmetrics.Memory
	sink     xmetrics.Sink
	health   *xhealth.State
	reactor  *xreactor.Reactor

	driver    xstore.Driver
	discovery xdiscovery.Discovery
	queue     xqueue.Enqueuer

	todos  *todorepo.Repo
	subs   *subrepo.Repo
	assets *assetrepo.Repo

	closers []func() error
}

// newEnv 按 settings 构建组件，失败时释放已创建的部分。
func newEnv(settings xconf.Settings, logOut io.Writer) (_ *env, err error) {
	e := &env{settings: settings, metrics: xmetrics.NewMemory()}
	defer func() {
		if err != nil {
			err = errors.Join(err, e.release())
		}
	}()

	if err := e.buildLogger(logOut); err != nil {
		return nil, err
	}
	e.sink = xmetrics.Tee(e.metrics, xmetrics.NewOTelSink(xmetrics.WithInstrumentationName("todoctl")))
	e.health = xhealth.New(xhealth.WithOnChange(func(s xhealth.Snapshot) {
		e.logger.Warn(context.Background(), "todoctl: service health changed",
			slog.String("status", s.Status()), slog.Any("owners", s.Owners), xlog.Err(s.Err))
	}))
	e.reactor, err = xreactor.New(
		xreactor.WithName("todoctl"),
		xreactor.WithLogger(e.logger),
		xreactor.WithMetrics(e.sink),
		xreactor.WithQueueSize(settings.Reactor.QueueSize),
		xreactor.WithBlockingWorkers(settings.Reactor.BlockingWorkers),
	)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() error { return e.reactor.Stop(context.Background()) })

	if e.driver, err = buildDriver(settings, e.logger); err != nil {
		return nil, err
	}
	if err := e.buildDiscovery(); err != nil {
		return nil, err
	}
	if err := e.buildQueue(); err != nil {
		return nil, err
	}
	if err := e.buildRepos(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *env) buildLogger(out io.Writer) error {
	s := e.settings.Log
	b := xlog.New().SetLevelString(s.Level).SetFormat(s.Format).SetAttrs(xlog.Component("todoctl"))
	if s.File != "" {
		b = b.SetRotation(s.File,
			xlog.WithMaxSize(s.MaxSizeMB), xlog.WithMaxBackups(s.MaxBackups), xlog.WithCompress(s.Compress))
	} else if out != nil {
		b = b.SetOutput(out)
	}
	logger, cleanup, err := b.Build()
	if err != nil {
		return err
	}
	e.logger = logger
	e.closers = append(e.closers, cleanup)
	return nil
}

func buildDriver(settings xconf.Settings, logger xlog.Logger) (xstore.Driver, error) {
	s := settings.Store
	observer, err := xmetrics.NewOTelObserver()
	if err != nil {
		return nil, err
	}
	switch s.Driver {
	case xconf.DriverMongo:
		opts := []xmongo.Option{
			xmongo.WithConnectTimeout(settings.Repo.ConnectTimeout),
			xmongo.WithSlowQueryThreshold(s.SlowQuery),
			xmongo.WithObserver(observer),
			xmongo.WithLogger(logger),
		}
		if s.Username != "" {
			opts = append(opts, xmongo.WithAuth(s.Username, s.Password, s.AuthSource))
		}
		return xmongo.New(s.Database, opts...)
	case xconf.DriverClickHouse:
		opts := []xclickhouse.Option{
			xclickhouse.WithConnectTimeout(settings.Repo.ConnectTimeout),
			xclickhouse.WithSlowQueryThreshold(s.SlowQuery),
			xclickhouse.WithObserver(observer),
			xclickhouse.WithLogger(logger),
		}
		if s.Username != "" {
			opts = append(opts, xclickhouse.WithAuth(s.Username, s.Password))
		}
		return xclickhouse.New(s.Database, opts...)
	case xconf.DriverMemory:
		return xstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("todoctl: unknown store driver %q", s.Driver)
	}
}

// buildDiscovery 组合发现后端：按提示 scheme 分派，失败或提示为空时回落到静态端点。
func (e *env) buildDiscovery() error {
	s := e.settings.Discovery
	var defaults []xdiscovery.Endpoint
	for _, addr := range s.Static {
		ep, err := xdiscovery.ParseEndpoint(addr)
		if err != nil {
			return err
		}
		defaults = append(defaults, ep)
	}
	static := xdiscovery.NewStatic(defaults...)
	mux := xdiscovery.NewMux().Handle("static", static)

	if s.DNSPort > 0 {
		mux.Handle("dns", xdiscovery.NewDNS(xdiscovery.WithDefaultPort(s.DNSPort)))
	}
	if len(s.Etcd) > 0 {
		client, err := clientv3.New(clientv3.Config{Endpoints: s.Etcd, DialTimeout: etcdDialTimeout})
		if err != nil {
			return fmt.Errorf("todoctl: etcd client: %w", err)
		}
		e.closers = append(e.closers, client.Close)
		etcd, err := xdiscovery.NewEtcd(client, xdiscovery.WithPrefix(s.EtcdPrefix))
		if err != nil {
			return err
		}
		mux.Handle("etcd", etcd)
	}
	if s.Kubernetes {
		cfg, err := rest.InClusterConfig()
		if err != nil {
			return fmt.Errorf("todoctl: kubernetes config: %w", err)
		}
		cs, err := kubernetes.NewForConfig(cfg)
		if err != nil {
			return fmt.Errorf("todoctl: kubernetes client: %w", err)
		}
		k8s, err := xdiscovery.NewKubernetes(cs,
			xdiscovery.WithNamespace(s.Namespace), xdiscovery.WithPortName(s.PortName))
		if err != nil {
			return err
		}
		mux.Handle("k8s", k8s)
	}
	e.discovery = xdiscovery.Chain(mux, static)
	return nil
}

func (e *env) buildQueue() error {
	s := e.settings.Queue
	var q xqueue.Enqueuer
	switch s.Kind {
	case xconf.QueueNone, "":
		return nil
	case xconf.QueueMemory:
		m := xqueue.NewMemory(s.Capacity)
		e.closers = append(e.closers, m.Close)
		q = m
	case xconf.QueueRedis:
		client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		e.closers = append(e.closers, client.Close)
		stream, err := xqueue.NewRedisStream(client,
			xqueue.WithStreamPrefix(s.StreamPrefix), xqueue.WithMaxLen(s.MaxLen))
		if err != nil {
			return err
		}
		q = stream
		if s.RatePerSecond > 0 {
			q = xqueue.RateLimited(q, client, redis_rate.PerSecond(s.RatePerSecond))
		}
	case xconf.QueueKafka:
		k, err := xkafka.NewEnqueuer(&kafka.ConfigMap{"bootstrap.servers": s.KafkaBrokers})
		if err != nil {
			return err
		}
		e.closers = append(e.closers, k.Close)
		q = k
	case xconf.QueuePulsar:
		p, err := xpulsar.NewEnqueuer(s.PulsarURL)
		if err != nil {
			return err
		}
		e.closers = append(e.closers, p.Close)
		q = p
	default:
		return fmt.Errorf("todoctl: unknown queue kind %q", s.Kind)
	}
	e.queue = xqueue.Retrying(q, s.RetryAttempts, s.RetryDelay, xqueue.WithRetryLogger(e.logger))
	return nil
}

func (e *env) buildRepos() error {
	todoCfg := e.settings.Repo
	if len(todoCfg.Bootstrap) == 0 {
		todoCfg.Bootstrap = todorepo.DefaultBootstrap(e.driver.Name())
	}
	core, err := e.core("todo", todoCfg, e.sink)
	if err != nil {
		return err
	}
	opts := []todorepo.Option{todorepo.WithCacheSize(e.settings.Todo.CacheSize)}
	if e.queue != nil {
		opts = append(opts, todorepo.WithQueue(e.queue, e.settings.Queue.Topic))
	}
	if e.todos, err = todorepo.New(core, opts...); err != nil {
		return err
	}

	subCfg := e.settings.Repo
	subCfg.Bootstrap = subrepo.DefaultBootstrap(e.driver.Name())
	subCore, err := e.core("subscription", subCfg, xmetrics.Prefixed("subscription", e.sink))
	if err != nil {
		return err
	}
	if e.subs, err = subrepo.New(subCore); err != nil {
		return err
	}

	assetCfg := e.settings.Repo
	assetCfg.Bootstrap = assetrepo.DefaultBootstrap(e.driver.Name())
	assetCore, err := e.core("asset", assetCfg, xmetrics.Prefixed("asset", e.sink))
	if err != nil {
		return err
	}
	e.assets, err = assetrepo.New(assetCore)
	return err
}

func (e *env) core(name string, cfg xrepo.Config, sink xmetrics.Sink) (*xrepo.Core, error) {
	return xrepo.New(e.driver, e.discovery,
		xrepo.WithName(name),
		xrepo.WithConfig(cfg),
		xrepo.WithReactor(e.reactor),
		xrepo.WithMetrics(sink),
		xrepo.WithHealth(e.health),
		xrepo.WithLogger(e.logger.With(xlog.Component(name))),
	)
}

// close 关闭仓储并释放其余组件。
func (e *env) close(ctx context.Context) error {
	var errs []error
	if e.todos != nil {
		errs = append(errs, e.todos.Close(ctx))
	}
	if e.subs != nil {
		errs = append(errs, e.subs.Close(ctx))
	}
	if e.assets != nil {
		errs = append(errs, e.assets.Close(ctx))
	}
	return errors.Join(append(errs, e.release())...)
}

// release 逆序执行 closers。
func (e *env) release() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}
