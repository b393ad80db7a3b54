package xdiscovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Endpoint 是一个已解析的存储端点。
type Endpoint struct {
	Host string
	Port int
}

// Address 返回 host:port。
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}

// Discovery 根据提示解析端点列表。
type Discovery interface {
	Lookup(ctx context.Context, hint string) ([]Endpoint, error)
}

// Func 把普通函数适配为 Discovery。
type Func func(ctx context.Context, hint string) ([]Endpoint, error)

// Lookup 实现 Discovery。
func (f Func) Lookup(ctx context.Context, hint string) ([]Endpoint, error) {
	return f(ctx, hint)
}

// Hint 是解析后的发现提示。
type Hint struct {
	Scheme    string // static / dns / etcd / k8s
	Namespace string // 仅 k8s
	Name      string // 服务名或静态地址列表
	Port      int    // 0 表示未指定
}

// ParseHint 解析发现提示，不带 scheme 时按静态列表处理。
func ParseHint(hint string) (Hint, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return Hint{}, fmt.Errorf("%w: empty", ErrInvalidHint)
	}
	scheme, rest, ok := strings.Cut(hint, "://")
	if !ok {
		return Hint{Scheme: "static", Name: hint}, nil
	}
	scheme = strings.ToLower(scheme)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return Hint{}, fmt.Errorf("%w: %q has no name", ErrInvalidHint, hint)
	}

	switch scheme {
	case "static":
		return Hint{Scheme: scheme, Name: rest}, nil
	case "dns", "etcd":
		name, port, err := splitOptionalPort(rest)
		if err != nil {
			return Hint{}, fmt.Errorf("%w: %q: %w", ErrInvalidHint, hint, err)
		}
		return Hint{Scheme: scheme, Name: name, Port: port}, nil
	case "k8s", "kubernetes":
		ns, svc, found := strings.Cut(rest, "/")
		if !found {
			ns, svc = "", rest
		}
		name, port, err := splitOptionalPort(svc)
		if err != nil {
			return Hint{}, fmt.Errorf("%w: %q: %w", ErrInvalidHint, hint, err)
		}
		return Hint{Scheme: "k8s", Namespace: ns, Name: name, Port: port}, nil
	default:
		return Hint{Scheme: scheme, Name: rest}, nil
	}
}

func splitOptionalPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// 没有端口
		return s, 0, nil //nolint:nilerr // 端口可选
	}
	port, err := parsePort(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}

// ParseEndpoints 解析逗号分隔的 host:port 列表。
func ParseEndpoints(list string) ([]Endpoint, error) {
	var out []Endpoint
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ep, err := ParseEndpoint(part)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	if len(out) == 0 {
		return nil, ErrNoEndpoints
	}
	return out, nil
}

// ParseEndpoint 解析单个 host:port。
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrInvalidHint, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: empty host in %q", ErrInvalidHint, s)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrInvalidHint, err)
	}
	return Endpoint{Host: host, Port: port}, nil
}

// Static 解析提示中的静态地址，提示为空时返回配置的默认地址。
type Static struct {
	defaults []Endpoint
}

// NewStatic 创建静态发现。
func NewStatic(defaults ...Endpoint) *Static {
	return &Static{defaults: defaults}
}

// Lookup 实现 Discovery。
func (s *Static) Lookup(_ context.Context, hint string) ([]Endpoint, error) {
	if strings.TrimSpace(hint) == "" {
		if len(s.defaults) == 0 {
			return nil, ErrNoEndpoints
		}
		return append([]Endpoint(nil), s.defaults...), nil
	}
	h, err := ParseHint(hint)
	if err != nil {
		return nil, err
	}
	return ParseEndpoints(h.Name)
}

// Mux 按提示 scheme 选择后端。
type Mux struct {
	backends map[string]Discovery
}

// NewMux 创建 Mux，默认注册 static 后端。
func NewMux() *Mux {
	return &Mux{backends: map[string]Discovery{"static": NewStatic()}}
}

// Handle 为 scheme 注册后端，返回 m 以便链式调用。
func (m *Mux) Handle(scheme string, d Discovery) *Mux {
	if d != nil {
		m.backends[strings.ToLower(scheme)] = d
	}
	return m
}

// Lookup 实现 Discovery。
func (m *Mux) Lookup(ctx context.Context, hint string) ([]Endpoint, error) {
	h, err := ParseHint(hint)
	if err != nil {
		return nil, err
	}
	d, ok := m.backends[h.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, h.Scheme)
	}
	return d.Lookup(ctx, hint)
}

// Chain 依次尝试 backends，返回第一个非空结果；全部失败时返回合并后的错误。
func Chain(backends ...Discovery) Discovery {
	return Func(func(ctx context.Context, hint string) ([]Endpoint, error) {
		var errs []error
		for _, d := range backends {
			if d == nil {
				continue
			}
			eps, err := d.Lookup(ctx, hint)
			if err == nil && len(eps) > 0 {
				return eps, nil
			}
			if err != nil {
				errs = append(errs, err)
			}
			if ctx.Err() != nil {
				break
			}
		}
		if len(errs) == 0 {
			return nil, ErrNoEndpoints
		}
		return nil, errors.Join(errs...)
	})
}
