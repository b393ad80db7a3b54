//go:build integration

package xkafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/omeyang/todokit/pkg/mq/xkafka"
	"github.com/omeyang/todokit/pkg/mq/xqueue"
)

func setupKafka(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := kafkaContainer.Run(ctx,
		"confluentinc/cp-kafka:7.5.0",
		kafkaContainer.WithClusterID("test-cluster"),
	)
	if err != nil {
		t.Skipf("kafka container not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func TestIntegration_Enqueue(t *testing.T) {
	brokers := setupKafka(t)
	q, err := xkafka.NewEnqueuer(&kafka.ConfigMap{
		"bootstrap.servers":        brokers,
		"allow.auto.create.topics": true,
	})
	require.NoError(t, err)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, q.Enqueue(ctx, xqueue.NewItem("todo.pending", []byte(`{"id":"a"}`))))
	assert.Equal(t, int64(1), q.Stats().Delivered)
}
