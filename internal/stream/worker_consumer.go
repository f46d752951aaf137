package stream

import (
	"context"

	"order_worker/adapter/in/worker"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Consumer feeds stream entries into the worker pool and acks them once the
// pool is finished with them.
type Consumer struct {
	stream *RedisStream
	pool   *worker.Pool
	name   string
	log    zerolog.Logger
}

func NewConsumer(stream *RedisStream, pool *worker.Pool, name string, log zerolog.Logger) *Consumer {
	c := &Consumer{
		stream: stream,
		pool:   pool,
		name:   name,
		log:    log.With().Str("component", "stream_consumer").Str("consumer", name).Logger(),
	}
	pool.OnDone = c.ack
	return c
}

// Start creates the group and blocks consuming until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.stream.CreateGroup(ctx, StreamExtract); err != nil {
		return err
	}
	c.log.Info().Str("stream", StreamExtract).Msg("consumer started")
	c.stream.Consume(ctx, StreamExtract, c.name, func(id string, data []byte) {
		var msg worker.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Error().Err(err).Str("id", id).Msg("failed to unmarshal job, acking")
			_ = c.stream.Ack(context.Background(), StreamExtract, id)
			return
		}
		msg.StreamID = id
		if !c.pool.Submit(&msg) {
			// 풀이 멈춘 경우 pending으로 남겨 재기동 시 재처리
			c.log.Warn().Str("id", id).Msg("pool stopped, job left pending")
		}
	})
	return nil
}

func (c *Consumer) ack(msg *worker.Message, err error) {
	if msg.StreamID == "" {
		return
	}
	if err != nil {
		c.log.Error().Err(err).Str("job_id", msg.ID).Msg("job permanently failed")
	}
	if ackErr := c.stream.Ack(context.Background(), StreamExtract, msg.StreamID); ackErr != nil {
		c.log.Warn().Err(ackErr).Str("id", msg.StreamID).Msg("ack failed")
	}
}
