package xdiscovery

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/mock/gomock"
	discoveryv1 "k8s.io/api/discovery/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestParseHint(t *testing.T) {
	tests := []struct {
		hint string
		want Hint
		err  bool
	}{
		{"10.0.0.1:9042", Hint{Scheme: "static", Name: "10.0.0.1:9042"}, false},
		{"static://a:1,b:2", Hint{Scheme: "static", Name: "a:1,b:2"}, false},
		{"dns://cassandra.marathon.mesos:9042", Hint{Scheme: "dns", Name: "cassandra.marathon.mesos", Port: 9042}, false},
		{"DNS://_cql._tcp.cassandra", Hint{Scheme: "dns", Name: "_cql._tcp.cassandra"}, false},
		{"etcd://cassandra", Hint{Scheme: "etcd", Name: "cassandra"}, false},
		{"k8s://data/cassandra:9042", Hint{Scheme: "k8s", Namespace: "data", Name: "cassandra", Port: 9042}, false},
		{"kubernetes://cassandra", Hint{Scheme: "k8s", Name: "cassandra"}, false},
		{"dns://host:0", Hint{}, true},
		{"dns://", Hint{}, true},
		{"  ", Hint{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			got, err := ParseHint(tt.hint)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidHint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEndpoints(t *testing.T) {
	eps, err := ParseEndpoints(" a:1, [::1]:2 ,")
	require.NoError(t, err)
	assert.Equal(t, []Endpoint{{Host: "a", Port: 1}, {Host: "::1", Port: 2}}, eps)
	assert.Equal(t, "[::1]:2", eps[1].Address())
	assert.Equal(t, "a:1", eps[0].String())

	_, err = ParseEndpoints(",")
	assert.ErrorIs(t, err, ErrNoEndpoints)
	_, err = ParseEndpoints("nohost")
	assert.ErrorIs(t, err, ErrInvalidHint)
	_, err = ParseEndpoint(":80")
	assert.ErrorIs(t, err, ErrInvalidHint)
}

func TestStatic(t *testing.T) {
	s := NewStatic(Endpoint{Host: "default", Port: 9042})
	eps, err := s.Lookup(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []Endpoint{{Host: "default", Port: 9042}}, eps)

	eps, err = s.Lookup(context.Background(), "static://x:1,y:2")
	require.NoError(t, err)
	assert.Len(t, eps, 2)

	_, err = NewStatic().Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

type fakeResolver struct {
	srvs    []*net.SRV
	srvErr  error
	hosts   []string
	hostErr error
}

func (f fakeResolver) LookupSRV(context.Context, string, string, string) (string, []*net.SRV, error) {
	return "", f.srvs, f.srvErr
}

func (f fakeResolver) LookupHost(context.Context, string) ([]string, error) {
	return f.hosts, f.hostErr
}

func TestDNS(t *testing.T) {
	ctx := context.Background()
	errNX := errors.New("no such host")

	d := &DNS{resolver: fakeResolver{srvs: []*net.SRV{{Target: "node1.mesos.", Port: 31000}}}}
	eps, err := d.Lookup(ctx, "dns://_cql._tcp.cassandra")
	require.NoError(t, err)
	assert.Equal(t, []Endpoint{{Host: "node1.mesos", Port: 31000}}, eps)

	d = &DNS{resolver: fakeResolver{srvErr: errNX, hosts: []string{"10.0.0.1", "10.0.0.2"}}}
	eps, err = d.Lookup(ctx, "dns://cassandra:9042")
	require.NoError(t, err)
	assert.Equal(t, []Endpoint{{Host: "10.0.0.1", Port: 9042}, {Host: "10.0.0.2", Port: 9042}}, eps)

	_, err = d.Lookup(ctx, "dns://cassandra")
	assert.ErrorIs(t, err, errNX)

	d = &DNS{resolver: fakeResolver{hostErr: errNX}, defaultPort: 9042}
	_, err = d.Lookup(ctx, "dns://cassandra")
	assert.ErrorIs(t, err, errNX)

	d = &DNS{resolver: fakeResolver{}}
	_, err = d.Lookup(ctx, "dns://cassandra")
	assert.ErrorIs(t, err, ErrNoEndpoints)

	assert.NotNil(t, NewDNS(WithResolver(net.DefaultResolver), WithDefaultPort(1)).resolver)
}

func TestEtcd(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMocketcdGetter(ctrl)
	e := newEtcd(mock, WithPrefix("/svc"))
	ctx := context.Background()

	mock.EXPECT().
		Get(ctx, "/svc/cassandra/", gomock.Any()).
		Return(&clientv3.GetResponse{Kvs: []*mvccpb.KeyValue{
			{Key: []byte("/svc/cassandra/a"), Value: []byte("10.0.0.1:9042")},
			{Key: []byte("/svc/cassandra/bad"), Value: []byte("garbage")},
			{Key: []byte("/svc/cassandra/b"), Value: []byte(" 10.0.0.2:9042\n")},
		}}, nil)

	eps, err := e.Lookup(ctx, "etcd://cassandra")
	require.NoError(t, err)
	assert.Equal(t, []Endpoint{{Host: "10.0.0.1", Port: 9042}, {Host: "10.0.0.2", Port: 9042}}, eps)
}

func TestEtcd_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMocketcdGetter(ctrl)
	e := newEtcd(mock)
	ctx := context.Background()
	errUnavailable := errors.New("etcdserver: unavailable")

	mock.EXPECT().Get(ctx, "/services/todo/", gomock.Any()).Return(nil, errUnavailable)
	_, err := e.Lookup(ctx, "etcd://todo")
	assert.ErrorIs(t, err, errUnavailable)

	mock.EXPECT().Get(ctx, "/services/todo/", gomock.Any()).Return(&clientv3.GetResponse{}, nil)
	_, err = e.Lookup(ctx, "etcd://todo")
	assert.ErrorIs(t, err, ErrNoEndpoints)

	_, err = NewEtcd(nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func endpointSlice(ns, name string, port int32, ready []bool, addrs ...string) *discoveryv1.EndpointSlice {
	portName := "cql"
	slice := &discoveryv1.EndpointSlice{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name + "-abc",
			Namespace: ns,
			Labels:    map[string]string{discoveryv1.LabelServiceName: name},
		},
		AddressType: discoveryv1.AddressTypeIPv4,
		Ports:       []discoveryv1.EndpointPort{{Name: &portName, Port: &port}},
	}
	for i, addr := range addrs {
		r := ready[i]
		slice.Endpoints = append(slice.Endpoints, discoveryv1.Endpoint{
			Addresses:  []string{addr},
			Conditions: discoveryv1.EndpointConditions{Ready: &r},
		})
	}
	return slice
}

func TestKubernetes(t *testing.T) {
	client := fake.NewSimpleClientset(
		endpointSlice("data", "cassandra", 9042, []bool{true, false}, "10.1.0.1", "10.1.0.2"),
		endpointSlice("default", "other", 80, []bool{true}, "10.2.0.1"),
	)
	k, err := NewKubernetes(client, WithNamespace("data"), WithPortName("cql"))
	require.NoError(t, err)
	ctx := context.Background()

	eps, err := k.Lookup(ctx, "k8s://cassandra")
	require.NoError(t, err)
	assert.Equal(t, []Endpoint{{Host: "10.1.0.1", Port: 9042}}, eps)

	eps, err = k.Lookup(ctx, "k8s://data/cassandra:19042")
	require.NoError(t, err)
	assert.Equal(t, []Endpoint{{Host: "10.1.0.1", Port: 19042}}, eps)

	_, err = k.Lookup(ctx, "k8s://missing")
	assert.ErrorIs(t, err, ErrNoEndpoints)

	_, err = NewKubernetes(nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestMuxAndChain(t *testing.T) {
	ctx := context.Background()
	errDown := errors.New("backend down")
	failing := Func(func(context.Context, string) ([]Endpoint, error) { return nil, errDown })
	empty := Func(func(context.Context, string) ([]Endpoint, error) { return nil, nil })
	fixed := Func(func(context.Context, string) ([]Endpoint, error) {
		return []Endpoint{{Host: "h", Port: 1}}, nil
	})

	m := NewMux().Handle("dns", fixed).Handle("etcd", nil)
	eps, err := m.Lookup(ctx, "dns://anything")
	require.NoError(t, err)
	assert.Len(t, eps, 1)

	eps, err = m.Lookup(ctx, "a:1")
	require.NoError(t, err)
	assert.Equal(t, []Endpoint{{Host: "a", Port: 1}}, eps)

	_, err = m.Lookup(ctx, "etcd://x")
	assert.ErrorIs(t, err, ErrUnknownScheme)

	eps, err = Chain(failing, nil, empty, fixed).Lookup(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, eps, 1)

	_, err = Chain(failing).Lookup(ctx, "x")
	assert.ErrorIs(t, err, errDown)

	_, err = Chain(empty).Lookup(ctx, "x")
	assert.ErrorIs(t, err, ErrNoEndpoints)
}
