package stream

import (
	"context"

	"order_worker/adapter/in/worker"
	"order_worker/core/port/in"

	"github.com/google/uuid"
)

type Producer struct {
	stream *RedisStream
}

func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

// PublishBatch queues an import and returns the batch id the result will be
// stored under. A preset req.BatchID is kept.
func (p *Producer) PublishBatch(ctx context.Context, userID uuid.UUID, req in.ImportEmailsRequest) (uuid.UUID, error) {
	if req.BatchID == uuid.Nil {
		req.BatchID = uuid.New()
	}
	msg, err := worker.NewMessage(worker.JobExtractBatch, worker.BatchPayload{
		UserID:  userID,
		Request: req,
	})
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := p.stream.Publish(ctx, StreamExtract, msg); err != nil {
		return uuid.Nil, err
	}
	return req.BatchID, nil
}
