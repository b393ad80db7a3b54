package xreactor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/todokit/pkg/observability/xlog"
)

// intervalSchedule 是固定间隔的 cron.Schedule。
// cron.Every 会把间隔截断到秒，这里保留亚秒精度。
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.every)
}

// cronLogger 把 cron.Logger 适配到 xlog.Logger。
type cronLogger struct {
	logger xlog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(context.Background(), "cron: "+msg, kvAttrs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	attrs := append(kvAttrs(keysAndValues), xlog.Err(err))
	l.logger.Error(context.Background(), "cron: "+msg, attrs...)
}

func kvAttrs(kv []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, slog.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return attrs
}

var (
	_ cron.Schedule = intervalSchedule{}
	_ cron.Logger   = cronLogger{}
)
