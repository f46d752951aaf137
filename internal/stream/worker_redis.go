package stream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	StreamExtract = "extract:jobs"

	dataField = "data"
)

type RedisStream struct {
	client *redis.Client
	group  string
	block  time.Duration
	log    zerolog.Logger
}

func NewRedisStream(client *redis.Client, group string, block time.Duration, log zerolog.Logger) *RedisStream {
	if block <= 0 {
		block = 5 * time.Second
	}
	return &RedisStream{
		client: client,
		group:  group,
		block:  block,
		log:    log.With().Str("component", "redis_stream").Logger(),
	}
}

func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{dataField: jsonData},
	}).Result()
}

// Consume reads new entries for consumer until ctx is done. Entries are not
// acked here; handler owns the Ack once processing is final.
func (s *RedisStream) Consume(ctx context.Context, stream, consumer string, handler func(id string, data []byte)) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    s.block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				s.log.Warn().Err(err).Str("stream", stream).Msg("stream read error")
				time.Sleep(time.Second)
			}
			continue
		}

		for _, st := range streams {
			for _, msg := range st.Messages {
				data, ok := msg.Values[dataField].(string)
				if !ok {
					s.log.Warn().Str("id", msg.ID).Msg("entry without data field, acking")
					_ = s.Ack(ctx, st.Stream, msg.ID)
					continue
				}
				handler(msg.ID, []byte(data))
			}
		}
	}
}

func (s *RedisStream) Ack(ctx context.Context, stream, id string) error {
	return s.client.XAck(ctx, stream, s.group, id).Err()
}

func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}
