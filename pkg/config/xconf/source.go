package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 是配置格式。
type Format string

// 支持的配置格式。
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Source 是一份已解析的配置。并发安全。
type Source struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	path   string
	format Format
	opts   *options
}

// Open 从文件加载配置，格式由扩展名决定。空文件得到空配置。
func Open(path string, opts ...Option) (*Source, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	s := newSource(format, opts)
	s.path = path
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromBytes 从字节数据加载配置。
func FromBytes(data []byte, format Format, opts ...Option) (*Source, error) {
	if format != FormatYAML && format != FormatJSON {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	s := newSource(format, opts)
	k, err := parse(data, format, s.opts.delim)
	if err != nil {
		return nil, err
	}
	s.k = k
	return s, nil
}

func newSource(format Format, opts []Option) *Source {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Source{k: koanf.New(o.delim), format: format, opts: o}
}

// Koanf 返回当前的 koanf 实例。Reload 后旧实例仍可读，但内容已过期。
func (s *Source) Koanf() *koanf.Koanf {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k
}

// Unmarshal 把 path 下的配置反序列化到 target，path 为空时反序列化全部。
// target 中已有的值在配置缺省对应键时保留。
func (s *Source) Unmarshal(path string, target any) error {
	k := s.Koanf()
	if err := k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: s.opts.tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Settings 在 [Default] 之上叠加配置内容并校验。
func (s *Source) Settings() (Settings, error) {
	out := Default()
	if err := s.Unmarshal("", &out); err != nil {
		return Settings{}, err
	}
	if err := out.Validate(); err != nil {
		return Settings{}, err
	}
	return out, nil
}

// Reload 重新读取文件。解析失败时保留旧内容。
func (s *Source) Reload() error {
	if s.path == "" {
		return ErrNotReloadable
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := parse(data, s.format, s.opts.delim)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.k = k
	s.mu.Unlock()
	return nil
}

// Path 返回文件路径，FromBytes 创建的 Source 返回空串。
func (s *Source) Path() string { return s.path }

// Format 返回配置格式。
func (s *Source) Format() Format { return s.format }

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func parse(data []byte, format Format, delim string) (*koanf.Koanf, error) {
	k := koanf.New(delim)
	if len(data) == 0 {
		return k, nil
	}
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return nil, ErrUnsupportedFormat
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return k, nil
}
