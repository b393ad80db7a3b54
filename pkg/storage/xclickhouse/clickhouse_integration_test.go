//go:build integration

package xclickhouse

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/omeyang/todokit/pkg/storage/xstore"
)

func startClickHouse(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv("TODOKIT_CLICKHOUSE_ADDR"); addr != "" {
		return addr
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not found in PATH, skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.8",
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor:   wait.ForListeningPort("9000/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("clickhouse container not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestDriver_Integration(t *testing.T) {
	addr := startClickHouse(t)
	ctx := context.Background()

	d, err := New("default")
	require.NoError(t, err)
	sess, err := d.Connect(ctx, []string{addr})
	require.NoError(t, err)
	defer sess.Close(ctx)

	_, err = sess.Execute(ctx, xstore.Command("DROP TABLE IF EXISTS Todo"))
	require.NoError(t, err)
	_, err = sess.Execute(ctx, xstore.Command(
		"CREATE TABLE Todo (id String, version Int64, text String) ENGINE = MergeTree ORDER BY (id, version)"))
	require.NoError(t, err)

	for v := int64(1); v <= 3; v++ {
		res, err := sess.Execute(ctx, xstore.Insert("Todo", xstore.Row{"id": "a", "version": v, "text": "t"}))
		require.NoError(t, err)
		assert.True(t, res.Applied)
	}

	res, err := sess.Execute(ctx, xstore.Select("Todo", xstore.Row{"id": "a"}).OrderedBy("version", true).WithLimit(1))
	require.NoError(t, err)
	row, ok := res.One()
	require.True(t, ok)
	assert.Equal(t, int64(3), row["version"])

	res, err = sess.Execute(ctx, xstore.Insert("Todo", xstore.Row{"id": "a", "version": int64(9)}).Unique("id"))
	require.NoError(t, err)
	assert.False(t, res.Applied)
}
