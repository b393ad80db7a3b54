package xrepo

import (
	"errors"
	"fmt"
	"time"
)

// 默认值。
const (
	DefaultWarmUp           = 60 * time.Second
	DefaultCheckInterval    = 30 * time.Second
	DefaultFailureThreshold = 10
	DefaultErrorThreshold   = 25
	DefaultAllTimeout       = 15 * time.Second
	DefaultAnyTimeout       = 30 * time.Second
	DefaultConnectTimeout   = 10 * time.Second
	DefaultStatementTimeout = 10 * time.Second
	DefaultGuardFailures    = 5
)

// Config 是仓储核心配置，字段带 koanf 标签以便从配置文件加载。
type Config struct {
	// Service 是传给服务发现的提示，如 "dns://mongo.svc:27017"。
	Service string `koanf:"service"`
	// Bootstrap 是每次重连后执行的幂等初始化语句。
	Bootstrap []string `koanf:"bootstrap"`
	// WarmUp 是启动后注册健康检查前的延迟。
	WarmUp time.Duration `koanf:"warm_up"`
	// CheckInterval 是健康检查周期，固定间隔，无退避。
	CheckInterval time.Duration `koanf:"check_interval"`
	// FailureThreshold 是把服务标记为 failing 的连续重连失败次数。
	FailureThreshold int64 `koanf:"failure_threshold"`
	// ErrorThreshold 是判定连接退化的存储错误次数。
	ErrorThreshold int64 `koanf:"error_threshold"`
	// AllTimeout 是双写 all 组合的时间预算。
	AllTimeout time.Duration `koanf:"all_timeout"`
	// AnyTimeout 是旁路队列 any 竞速的时间预算。
	AnyTimeout time.Duration `koanf:"any_timeout"`
	// ConnectTimeout 限制单次服务发现与驱动连接。
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	// StatementTimeout 限制单条语句。
	StatementTimeout time.Duration `koanf:"statement_timeout"`
	// GuardFailures 是 CallGuard 熔断的连续失败次数。
	GuardFailures uint32 `koanf:"guard_failures"`
	// ConnectOnStart 为 true 时 Start 立即发起一次连接。
	ConnectOnStart bool `koanf:"connect_on_start"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		WarmUp:           DefaultWarmUp,
		CheckInterval:    DefaultCheckInterval,
		FailureThreshold: DefaultFailureThreshold,
		ErrorThreshold:   DefaultErrorThreshold,
		AllTimeout:       DefaultAllTimeout,
		AnyTimeout:       DefaultAnyTimeout,
		ConnectTimeout:   DefaultConnectTimeout,
		StatementTimeout: DefaultStatementTimeout,
		GuardFailures:    DefaultGuardFailures,
		ConnectOnStart:   true,
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	var errs []error
	if c.WarmUp < 0 {
		errs = append(errs, fmt.Errorf("warm_up must be >= 0, got %s", c.WarmUp))
	}
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"check_interval", c.CheckInterval},
		{"all_timeout", c.AllTimeout},
		{"any_timeout", c.AnyTimeout},
		{"connect_timeout", c.ConnectTimeout},
		{"statement_timeout", c.StatementTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %s", p.name, p.d))
		}
	}
	if c.FailureThreshold < 1 {
		errs = append(errs, fmt.Errorf("failure_threshold must be >= 1, got %d", c.FailureThreshold))
	}
	if c.ErrorThreshold < 0 {
		errs = append(errs, fmt.Errorf("error_threshold must be >= 0, got %d", c.ErrorThreshold))
	}
	if c.GuardFailures < 1 {
		errs = append(errs, fmt.Errorf("guard_failures must be >= 1, got %d", c.GuardFailures))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
