package worker

import (
	"context"

	"order_worker/pkg/apperr"
)

type Handler struct {
	batchProcessor *BatchProcessor
}

func NewHandler(batchProcessor *BatchProcessor) *Handler {
	return &Handler{batchProcessor: batchProcessor}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	switch msg.Type {
	case JobExtractBatch:
		return h.batchProcessor.ProcessBatch(ctx, msg)
	default:
		return apperr.BadRequest("unknown job type: " + msg.Type)
	}
}
