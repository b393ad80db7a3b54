package xdiscovery

import (
	"context"
	"fmt"
	"path"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// etcdGetter 是 Etcd 所需的 clientv3.KV 子集，用于依赖注入和测试。
type etcdGetter interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

var _ etcdGetter = (*clientv3.Client)(nil)

const defaultEtcdPrefix = "/services"

// Etcd 列出 <prefix>/<name>/ 下的所有键，每个值是一个 host:port。
//
// 注册方通常以租约写入这些键，实例下线后键随租约过期消失。
type Etcd struct {
	client etcdGetter
	prefix string
}

// EtcdOption 配置 Etcd。
type EtcdOption func(*Etcd)

// WithPrefix 设置服务键前缀，默认 /services。
func WithPrefix(prefix string) EtcdOption {
	return func(e *Etcd) {
		if prefix != "" {
			e.prefix = prefix
		}
	}
}

// NewEtcd 创建 etcd 发现。client 通常是 *clientv3.Client。
func NewEtcd(client *clientv3.Client, opts ...EtcdOption) (*Etcd, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return newEtcd(client, opts...), nil
}

func newEtcd(client etcdGetter, opts ...EtcdOption) *Etcd {
	e := &Etcd{client: client, prefix: defaultEtcdPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Lookup 实现 Discovery。
func (e *Etcd) Lookup(ctx context.Context, hint string) ([]Endpoint, error) {
	h, err := ParseHint(hint)
	if err != nil {
		return nil, err
	}
	key := path.Join(e.prefix, h.Name) + "/"
	resp, err := e.client.Get(ctx, key, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("xdiscovery: etcd get %s: %w", key, err)
	}

	out := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		ep, err := ParseEndpoint(strings.TrimSpace(string(kv.Value)))
		if err != nil {
			// 跳过格式错误的注册项，不影响其他实例
			continue
		}
		if h.Port != 0 {
			ep.Port = h.Port
		}
		out = append(out, ep)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: etcd %s", ErrNoEndpoints, key)
	}
	return out, nil
}
