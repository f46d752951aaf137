package stream

import (
	"context"
	"os"
	"testing"
	"time"

	"order_worker/adapter/in/worker"
	"order_worker/core/port/in"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProducerConsumer needs a scratch Redis at TEST_REDIS_URL.
func TestProducerConsumer(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() {
		client.Del(context.Background(), StreamExtract)
		_ = client.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rs := NewRedisStream(client, "test-"+uuid.NewString(), 100*time.Millisecond, zerolog.Nop())
	require.NoError(t, rs.CreateGroup(ctx, StreamExtract))
	require.NoError(t, rs.CreateGroup(ctx, StreamExtract), "BUSYGROUP is ignored")

	userID := uuid.New()
	batchID, err := NewProducer(rs).PublishBatch(ctx, userID, in.ImportEmailsRequest{EmailIDs: []string{"e1"}})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, batchID)

	got := make(chan worker.Message, 1)
	go rs.Consume(ctx, StreamExtract, "c1", func(id string, data []byte) {
		var msg worker.Message
		if json.Unmarshal(data, &msg) == nil {
			msg.StreamID = id
			got <- msg
		}
	})

	select {
	case msg := <-got:
		assert.Equal(t, worker.JobExtractBatch, msg.Type)
		var payload worker.BatchPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, userID, payload.UserID)
		assert.Equal(t, batchID, payload.Request.BatchID)

		pending, err := rs.Pending(ctx, StreamExtract)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pending)
		require.NoError(t, rs.Ack(ctx, StreamExtract, msg.StreamID))
	case <-ctx.Done():
		t.Fatal("no message consumed")
	}
}
