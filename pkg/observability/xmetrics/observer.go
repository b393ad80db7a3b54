package xmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	metricOperationTotal    = "todokit.operation.total"
	metricOperationDuration = "todokit.operation.duration"
)

// Kind 表示观测跨度类型。
type Kind int

const (
	// KindInternal 表示内部操作。
	KindInternal Kind = iota
	// KindClient 表示客户端调用（存储、发现）。
	KindClient
	// KindProducer 表示消息生产（旁路队列）。
	KindProducer
)

// Status 表示观测结果状态。
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// SpanOptions 定义观测跨度的创建参数。
type SpanOptions struct {
	Component string
	Operation string
	Kind      Kind
}

// Result 表示观测跨度结束时的结果。
type Result struct {
	Err error
}

// Span 表示一次观测跨度。
type Span interface {
	// End 结束观测并记录结果，多次调用只记录一次。
	End(result Result)
}

// Observer 定义统一观测接口。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// Start 返回 ctx 和空跨度。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 是空跨度实现。
type NoopSpan struct{}

// End 空实现。
func (NoopSpan) End(Result) {}

// Start 使用 observer 开始观测，nil observer 时返回空跨度。
// 保证返回非 nil 的 context 和 Span。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}

// ObserverOption 定义 OTel Observer 的配置选项。
type ObserverOption func(*observerConfig)

type observerConfig struct {
	otelConfig
	tracerProvider trace.TracerProvider
}

// WithTracerProvider 设置 TracerProvider，默认使用 otel.GetTracerProvider()。
func WithTracerProvider(provider trace.TracerProvider) ObserverOption {
	return func(cfg *observerConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithObserverMeterProvider 设置 Observer 使用的 MeterProvider。
func WithObserverMeterProvider(provider metric.MeterProvider) ObserverOption {
	return func(cfg *observerConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer。
func NewOTelObserver(opts ...ObserverOption) (Observer, error) {
	cfg := &observerConfig{
		otelConfig:     *newOTelConfig(nil),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)
	total, err := meter.Int64Counter(metricOperationTotal,
		metric.WithDescription("total operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create counter failed: %w", err)
	}
	duration, err := meter.Float64Histogram(metricOperationDuration,
		metric.WithDescription("operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create histogram failed: %w", err)
	}

	return &otelObserver{
		tracer:   cfg.tracerProvider.Tracer(cfg.instrumentationName),
		total:    total,
		duration: duration,
	}, nil
}

type otelObserver struct {
	tracer   trace.Tracer
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	component := opts.Component
	if component == "" {
		component = "unknown"
	}
	operation := opts.Operation
	if operation == "" {
		operation = "unknown"
	}

	ctx, span := o.tracer.Start(ctx, operation,
		trace.WithSpanKind(mapSpanKind(opts.Kind)),
		trace.WithAttributes(
			attribute.String("component", component),
			attribute.String("operation", operation),
		),
	)
	return ctx, &otelSpan{
		span:      span,
		observer:  o,
		ctx:       ctx,
		component: component,
		operation: operation,
		start:     time.Now(),
	}
}

type otelSpan struct {
	span      trace.Span
	observer  *otelObserver
	ctx       context.Context
	component string
	operation string
	start     time.Time
	endOnce   sync.Once
}

func (s *otelSpan) End(result Result) {
	s.endOnce.Do(func() {
		status := StatusOK
		if result.Err != nil {
			status = StatusError
			s.span.RecordError(result.Err)
			s.span.SetStatus(codes.Error, result.Err.Error())
		} else {
			s.span.SetStatus(codes.Ok, "")
		}
		s.span.End()

		attrs := metric.WithAttributes(
			attribute.String("component", s.component),
			attribute.String("operation", s.operation),
			attribute.String("status", string(status)),
		)
		s.observer.total.Add(s.ctx, 1, attrs)
		s.observer.duration.Record(s.ctx, time.Since(s.start).Seconds(), attrs)
	})
}

func mapSpanKind(kind Kind) trace.SpanKind {
	switch kind {
	case KindClient:
		return trace.SpanKindClient
	case KindProducer:
		return trace.SpanKindProducer
	default:
		return trace.SpanKindInternal
	}
}
