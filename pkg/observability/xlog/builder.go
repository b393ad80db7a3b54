package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrEmptyFilename 表示轮转文件名为空。
var ErrEmptyFilename = errors.New("xlog: empty rotation filename")

// RotationOption 日志轮转选项
type RotationOption func(*lumberjack.Logger)

// WithMaxSize 单个日志文件最大尺寸（MB），默认 100
func WithMaxSize(mb int) RotationOption {
	return func(l *lumberjack.Logger) {
		if mb > 0 {
			l.MaxSize = mb
		}
	}
}

// WithMaxBackups 保留的旧文件数量，默认 7
func WithMaxBackups(n int) RotationOption {
	return func(l *lumberjack.Logger) {
		if n >= 0 {
			l.MaxBackups = n
		}
	}
}

// WithCompress 是否压缩轮转后的文件
func WithCompress(enable bool) RotationOption {
	return func(l *lumberjack.Logger) {
		l.Compress = enable
	}
}

// Builder 日志配置构建器
type Builder struct {
	output      io.Writer
	levelVar    *slog.LevelVar
	format      string
	addSource   bool
	enableTrace bool
	rotator     *lumberjack.Logger
	attrs       []slog.Attr
	err         error
}

// New 创建配置构建器
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	return &Builder{
		output:      os.Stderr,
		levelVar:    levelVar,
		format:      "text",
		enableTrace: true,
	}
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if b.err != nil || w == nil {
		return b
	}
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	if b.err != nil {
		return b
	}
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	if b.err != nil {
		return b
	}
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json
func (b *Builder) SetFormat(format string) *Builder {
	if b.err != nil {
		return b
	}
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.err = fmt.Errorf("xlog: unknown format %q", format)
	}
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetTrace 是否注入 trace_id/span_id，默认启用
func (b *Builder) SetTrace(enable bool) *Builder {
	b.enableTrace = enable
	return b
}

// SetAttrs 设置每条日志都携带的固定属性（如 service 名称）
func (b *Builder) SetAttrs(attrs ...slog.Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// SetRotation 设置日志轮转，输出写入 filename
func (b *Builder) SetRotation(filename string, opts ...RotationOption) *Builder {
	if b.err != nil {
		return b
	}
	if strings.TrimSpace(filename) == "" {
		b.err = ErrEmptyFilename
		return b
	}
	rotator := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100,
		MaxBackups: 7,
	}
	for _, opt := range opts {
		opt(rotator)
	}
	b.rotator = rotator
	b.output = rotator
	return b
}

// Build 构建 Logger 实例
//
// 返回值：
//   - LoggerWithLevel: 日志实例，同时支持动态级别控制
//   - func() error: 清理函数，用于关闭轮转文件
//   - error: 配置错误
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:     b.levelVar,
		AddSource: b.addSource,
	}

	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}
	if b.enableTrace {
		handler = &traceHandler{base: handler}
	}

	logger := &xlogger{
		handler:   handler,
		levelVar:  b.levelVar,
		addSource: b.addSource,
	}

	var once sync.Once
	rotator := b.rotator
	cleanup := func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}

	return logger, cleanup, nil
}
