package xmetrics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const defaultInstrumentationName = "github.com/omeyang/todokit/xmetrics"

// ErrNilMeterProvider 表示传入的 MeterProvider 为 nil。
var ErrNilMeterProvider = errors.New("xmetrics: nil meter provider")

type otelConfig struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
	onError             func(name string, err error)
}

// Option 定义 OTel 实现的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认使用 otel.GetMeterProvider()。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithErrorHandler 设置仪表创建失败时的回调（默认忽略）。
func WithErrorHandler(fn func(name string, err error)) Option {
	return func(cfg *otelConfig) {
		cfg.onError = fn
	}
}

func newOTelConfig(opts []Option) *otelConfig {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// OTelSink 基于 OpenTelemetry metric 的 Sink 实现。
//
// 仪表按名称惰性创建并缓存；创建失败的名称会被记住，不再重试。
type OTelSink struct {
	meter    metric.Meter
	onError  func(name string, err error)
	counters sync.Map // string -> metric.Int64Counter
	gauges   sync.Map // string -> metric.Int64Gauge
	failed   sync.Map // string -> struct{}
}

// NewOTelSink 创建基于 OpenTelemetry 的 Sink。
func NewOTelSink(opts ...Option) *OTelSink {
	cfg := newOTelConfig(opts)
	return &OTelSink{
		meter:   cfg.meterProvider.Meter(cfg.instrumentationName),
		onError: cfg.onError,
	}
}

// Increment 将计数器加 1。
func (s *OTelSink) Increment(name string) {
	c, ok := s.counter(name)
	if !ok {
		return
	}
	c.Add(context.Background(), 1)
}

// RecordLevel 记录水位。
func (s *OTelSink) RecordLevel(name string, value int64) {
	g, ok := s.gauge(name)
	if !ok {
		return
	}
	g.Record(context.Background(), value)
}

func (s *OTelSink) counter(name string) (metric.Int64Counter, bool) {
	if c, ok := s.counters.Load(name); ok {
		return c.(metric.Int64Counter), true
	}
	if _, bad := s.failed.Load(name); bad {
		return nil, false
	}
	c, err := s.meter.Int64Counter(name, metric.WithUnit("1"))
	if err != nil {
		s.fail(name, err)
		return nil, false
	}
	actual, _ := s.counters.LoadOrStore(name, c)
	return actual.(metric.Int64Counter), true
}

func (s *OTelSink) gauge(name string) (metric.Int64Gauge, bool) {
	if g, ok := s.gauges.Load(name); ok {
		return g.(metric.Int64Gauge), true
	}
	if _, bad := s.failed.Load(name); bad {
		return nil, false
	}
	g, err := s.meter.Int64Gauge(name)
	if err != nil {
		s.fail(name, err)
		return nil, false
	}
	actual, _ := s.gauges.LoadOrStore(name, g)
	return actual.(metric.Int64Gauge), true
}

func (s *OTelSink) fail(name string, err error) {
	s.failed.Store(name, struct{}{})
	if s.onError != nil {
		s.onError(name, fmt.Errorf("xmetrics: create instrument %q: %w", name, err))
	}
}

var _ Sink = (*OTelSink)(nil)
