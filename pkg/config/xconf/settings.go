package xconf

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/omeyang/todokit/pkg/discovery/xdiscovery"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/repository/xrepo"
)

// 存储驱动。
const (
	DriverMemory     = "memory"
	DriverMongo      = "mongo"
	DriverClickHouse = "clickhouse"
)

// 旁路队列类型。
const (
	QueueNone   = "none"
	QueueMemory = "memory"
	QueueRedis  = "redis"
	QueueKafka  = "kafka"
	QueuePulsar = "pulsar"
)

// Settings 是 todoctl 的完整配置。
type Settings struct {
	Log       LogSettings       `koanf:"log"`
	Repo      xrepo.Config      `koanf:"repo"`
	Store     StoreSettings     `koanf:"store"`
	Discovery DiscoverySettings `koanf:"discovery"`
	Queue     QueueSettings     `koanf:"queue"`
	Reactor   ReactorSettings   `koanf:"reactor"`
	Todo      TodoSettings      `koanf:"todo"`
}

// LogSettings 对应 xlog.Builder。
type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File 非空时写入轮转文件。
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	Compress   bool   `koanf:"compress"`
}

// StoreSettings 选择存储驱动。
type StoreSettings struct {
	Driver     string        `koanf:"driver"`
	Database   string        `koanf:"database"`
	Username   string        `koanf:"username"`
	Password   string        `koanf:"password"`
	AuthSource string        `koanf:"auth_source"`
	SlowQuery  time.Duration `koanf:"slow_query"`
}

// DiscoverySettings 配置服务发现后端。Static 之外的后端按需启用，
// 全部以 Chain 串联，Static 兜底。
type DiscoverySettings struct {
	// Static 是 host:port 列表。
	Static []string `koanf:"static"`
	// DNSPort 是 DNS 后端在提示未带端口时使用的端口，0 表示不启用 DNS。
	DNSPort    int      `koanf:"dns_port"`
	Etcd       []string `koanf:"etcd"`
	EtcdPrefix string   `koanf:"etcd_prefix"`
	Kubernetes bool     `koanf:"kubernetes"`
	Namespace  string   `koanf:"namespace"`
	PortName   string   `koanf:"port_name"`
}

// QueueSettings 配置旁路队列。
type QueueSettings struct {
	Kind          string        `koanf:"kind"`
	Topic         string        `koanf:"topic"`
	Capacity      int           `koanf:"capacity"`
	RedisAddr     string        `koanf:"redis_addr"`
	StreamPrefix  string        `koanf:"stream_prefix"`
	MaxLen        int64         `koanf:"max_len"`
	KafkaBrokers  string        `koanf:"kafka_brokers"`
	PulsarURL     string        `koanf:"pulsar_url"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	// RatePerSecond 大于 0 时按 Redis 令牌桶限速，仅 redis 队列可用。
	RatePerSecond int `koanf:"rate_per_second"`
}

// ReactorSettings 配置反应器。
type ReactorSettings struct {
	QueueSize       int `koanf:"queue_size"`
	BlockingWorkers int `koanf:"blocking_workers"`
}

// TodoSettings 配置 Todo 仓储。
type TodoSettings struct {
	CacheSize int `koanf:"cache_size"`
}

// Default 返回默认配置：内存存储、无旁路队列、本机静态端点。
func Default() Settings {
	return Settings{
		Log:   LogSettings{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 7},
		Repo:  xrepo.DefaultConfig(),
		Store: StoreSettings{Driver: DriverMemory, Database: "todo", AuthSource: "admin", SlowQuery: time.Second},
		Discovery: DiscoverySettings{
			Static:    []string{"127.0.0.1:9042"},
			Namespace: "default",
		},
		Queue: QueueSettings{
			Kind:          QueueNone,
			Topic:         "todo",
			Capacity:      1024,
			StreamPrefix:  "todokit:",
			RetryAttempts: 3,
			RetryDelay:    100 * time.Millisecond,
		},
		Reactor: ReactorSettings{QueueSize: 4096, BlockingWorkers: 64},
		Todo:    TodoSettings{CacheSize: 4096},
	}
}

// Validate 校验配置，所有问题以 errors.Join 合并返回。
func (s Settings) Validate() error {
	var errs []error
	if _, err := xlog.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if !slices.Contains([]string{"", "text", "json"}, s.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", s.Log.Format))
	}
	if err := s.Repo.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{DriverMemory, DriverMongo, DriverClickHouse}, s.Store.Driver) {
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", s.Store.Driver))
	}
	if s.Store.Driver != DriverMemory && s.Store.Database == "" {
		errs = append(errs, errors.New("store.database: required"))
	}
	for _, addr := range s.Discovery.Static {
		if _, err := xdiscovery.ParseEndpoint(addr); err != nil {
			errs = append(errs, fmt.Errorf("discovery.static: %w", err))
		}
	}
	errs = append(errs, s.Queue.validate()...)
	if s.Reactor.QueueSize < 1 || s.Reactor.BlockingWorkers < 1 {
		errs = append(errs, errors.New("reactor: queue_size and blocking_workers must be >= 1"))
	}
	if s.Todo.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("todo.cache_size must be >= 1, got %d", s.Todo.CacheSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}

func (q QueueSettings) validate() []error {
	var errs []error
	switch q.Kind {
	case QueueNone, QueueMemory:
	case QueueRedis:
		if q.RedisAddr == "" {
			errs = append(errs, errors.New("queue.redis_addr: required for redis"))
		}
	case QueueKafka:
		if q.KafkaBrokers == "" {
			errs = append(errs, errors.New("queue.kafka_brokers: required for kafka"))
		}
	case QueuePulsar:
		if q.PulsarURL == "" {
			errs = append(errs, errors.New("queue.pulsar_url: required for pulsar"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.kind: unknown kind %q", q.Kind))
	}
	if q.Kind != QueueNone && q.Topic == "" {
		errs = append(errs, errors.New("queue.topic: required"))
	}
	if q.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("queue.retry_attempts must be >= 1, got %d", q.RetryAttempts))
	}
	if q.RatePerSecond > 0 && q.Kind != QueueRedis {
		errs = append(errs, errors.New("queue.rate_per_second: only supported for redis"))
	}
	return errs
}
