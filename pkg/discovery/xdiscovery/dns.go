package xdiscovery

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// resolver 是 DNS 所需的 net.Resolver 子集。
type resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNS 先按 SRV 记录解析，失败或为空时退回 A/AAAA 记录并使用提示端口。
type DNS struct {
	resolver    resolver
	defaultPort int
}

// DNSOption 配置 DNS。
type DNSOption func(*DNS)

// WithResolver 设置解析器，默认 net.DefaultResolver。
func WithResolver(r *net.Resolver) DNSOption {
	return func(d *DNS) {
		if r != nil {
			d.resolver = r
		}
	}
}

// WithDefaultPort 设置提示未携带端口时 A/AAAA 记录使用的端口。
func WithDefaultPort(port int) DNSOption {
	return func(d *DNS) {
		d.defaultPort = port
	}
}

// NewDNS 创建 DNS 发现。
func NewDNS(opts ...DNSOption) *DNS {
	d := &DNS{resolver: net.DefaultResolver}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Lookup 实现 Discovery。
func (d *DNS) Lookup(ctx context.Context, hint string) ([]Endpoint, error) {
	h, err := ParseHint(hint)
	if err != nil {
		return nil, err
	}

	_, srvs, srvErr := d.resolver.LookupSRV(ctx, "", "", h.Name)
	if srvErr == nil && len(srvs) > 0 {
		out := make([]Endpoint, 0, len(srvs))
		for _, srv := range srvs {
			out = append(out, Endpoint{Host: strings.TrimSuffix(srv.Target, "."), Port: int(srv.Port)})
		}
		return out, nil
	}

	port := h.Port
	if port == 0 {
		port = d.defaultPort
	}
	if port == 0 {
		if srvErr != nil {
			return nil, fmt.Errorf("xdiscovery: dns srv %s: %w", h.Name, srvErr)
		}
		return nil, fmt.Errorf("%w: dns %s has no srv records and no port", ErrNoEndpoints, h.Name)
	}

	hosts, err := d.resolver.LookupHost(ctx, h.Name)
	if err != nil {
		return nil, fmt.Errorf("xdiscovery: dns host %s: %w", h.Name, err)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: dns %s", ErrNoEndpoints, h.Name)
	}
	out := make([]Endpoint, 0, len(hosts))
	for _, host := range hosts {
		out = append(out, Endpoint{Host: host, Port: port})
	}
	return out, nil
}
