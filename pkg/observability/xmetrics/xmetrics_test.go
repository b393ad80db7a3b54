package xmetrics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMemory_CountersAndLevels(t *testing.T) {
	m := NewMemory()
	m.Increment("add.todo.success")
	m.Increment("add.todo.success")
	m.RecordLevel("repo.not.connected", 3)
	m.RecordLevel("repo.not.connected", 4)

	assert.Equal(t, int64(2), m.Count("add.todo.success"))
	assert.Equal(t, int64(0), m.Count("missing"))

	lvl, ok := m.Level("repo.not.connected")
	assert.True(t, ok)
	assert.Equal(t, int64(4), lvl)

	assert.Equal(t, []string{"add.todo.success"}, m.Names())
	assert.Equal(t, map[string]int64{"add.todo.success": 2}, m.Counters())

	m.Reset()
	assert.Empty(t, m.Names())
	_, ok = m.Level("repo.not.connected")
	assert.False(t, ok)
}

func TestMemory_Concurrent(t *testing.T) {
	var m Memory
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Increment("n")
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), m.Count("n"))
}

func TestPrefixedAndTee(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	s := Prefixed("todo.", Tee(a, nil, b))
	s.Increment("connect.called")
	s.RecordLevel("repo.not.connected", 1)

	assert.Equal(t, int64(1), a.Count("todo.connect.called"))
	assert.Equal(t, int64(1), b.Count("todo.connect.called"))
	v, ok := b.Level("todo.repo.not.connected")
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)

	assert.Same(t, a, Prefixed("", a))
	assert.Equal(t, Nop{}, OrNop(nil))
}

func TestOTelSink(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	sink := NewOTelSink(WithMeterProvider(provider), WithInstrumentationName("test"))
	sink.Increment("add.todo.success")
	sink.Increment("add.todo.success")
	sink.RecordLevel("repo.not.connected", 7)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	got := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			got[m.Name] = data.DataPoints[0].Value
		case metricdata.Gauge[int64]:
			got[m.Name] = data.DataPoints[0].Value
		}
	}
	assert.Equal(t, int64(2), got["add.todo.success"])
	assert.Equal(t, int64(7), got["repo.not.connected"])
}

func TestOTelSink_InvalidNameReported(t *testing.T) {
	provider := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var reported []string
	sink := NewOTelSink(WithMeterProvider(provider), WithErrorHandler(func(name string, err error) {
		require.Error(t, err)
		reported = append(reported, name)
	}))

	// 非法的仪表名（以数字开头）
	sink.Increment("1bad")
	sink.Increment("1bad")
	assert.Equal(t, []string{"1bad"}, reported)
}

func TestObserver(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	obs, err := NewOTelObserver(WithTracerProvider(tp), WithObserverMeterProvider(mp))
	require.NoError(t, err)

	_, span := Start(context.Background(), obs, SpanOptions{Component: "todorepo", Operation: "add.todo", Kind: KindClient})
	span.End(Result{Err: errors.New("boom")})
	span.End(Result{})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "add.todo", spans[0].Name())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == metricOperationTotal {
				for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
					total += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), total)
}

func TestStart_NilObserver(t *testing.T) {
	//nolint:staticcheck // 验证 nil context 兜底
	ctx, span := Start(nil, nil, SpanOptions{})
	assert.NotNil(t, ctx)
	assert.Equal(t, NoopSpan{}, span)

	ctx, span = NoopObserver{}.Start(context.Background(), SpanOptions{})
	assert.NotNil(t, ctx)
	span.End(Result{})
}
