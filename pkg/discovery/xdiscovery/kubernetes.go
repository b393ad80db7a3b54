package xdiscovery

import (
	"context"
	"fmt"

	discoveryv1 "k8s.io/api/discovery/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Kubernetes 通过 EndpointSlice 解析 Service 的就绪端点。
type Kubernetes struct {
	client    kubernetes.Interface
	namespace string
	portName  string
}

// KubernetesOption 配置 Kubernetes。
type KubernetesOption func(*Kubernetes)

// WithNamespace 设置提示未携带命名空间时使用的命名空间，默认 default。
func WithNamespace(ns string) KubernetesOption {
	return func(k *Kubernetes) {
		if ns != "" {
			k.namespace = ns
		}
	}
}

// WithPortName 选择 EndpointSlice 中指定名称的端口，默认取第一个端口。
func WithPortName(name string) KubernetesOption {
	return func(k *Kubernetes) {
		k.portName = name
	}
}

// NewKubernetes 创建 Kubernetes 发现。
func NewKubernetes(client kubernetes.Interface, opts ...KubernetesOption) (*Kubernetes, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	k := &Kubernetes{client: client, namespace: "default"}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}
	return k, nil
}

// Lookup 实现 Discovery。提示中的端口优先于 EndpointSlice 端口。
func (k *Kubernetes) Lookup(ctx context.Context, hint string) ([]Endpoint, error) {
	h, err := ParseHint(hint)
	if err != nil {
		return nil, err
	}
	ns := h.Namespace
	if ns == "" {
		ns = k.namespace
	}

	slices, err := k.client.DiscoveryV1().EndpointSlices(ns).List(ctx, metav1.ListOptions{
		LabelSelector: discoveryv1.LabelServiceName + "=" + h.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("xdiscovery: list endpointslices %s/%s: %w", ns, h.Name, err)
	}

	var out []Endpoint
	for i := range slices.Items {
		slice := &slices.Items[i]
		port := h.Port
		if port == 0 {
			port = k.slicePort(slice)
		}
		if port == 0 {
			continue
		}
		for _, ep := range slice.Endpoints {
			if ep.Conditions.Ready != nil && !*ep.Conditions.Ready {
				continue
			}
			for _, addr := range ep.Addresses {
				out = append(out, Endpoint{Host: addr, Port: port})
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: k8s %s/%s", ErrNoEndpoints, ns, h.Name)
	}
	return out, nil
}

func (k *Kubernetes) slicePort(slice *discoveryv1.EndpointSlice) int {
	for _, p := range slice.Ports {
		if p.Port == nil {
			continue
		}
		if k.portName == "" || (p.Name != nil && *p.Name == k.portName) {
			return int(*p.Port)
		}
	}
	return 0
}
