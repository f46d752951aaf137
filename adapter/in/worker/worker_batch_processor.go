package worker

import (
	"context"
	"time"

	"order_worker/core/port/in"
	"order_worker/core/port/out"
	"order_worker/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BatchProcessor runs queued batch imports and stores their summaries.
type BatchProcessor struct {
	imports   in.ImportService
	results   out.BatchResultStore
	resultTTL time.Duration
	log       zerolog.Logger
}

func NewBatchProcessor(imports in.ImportService, results out.BatchResultStore, resultTTL time.Duration, log zerolog.Logger) *BatchProcessor {
	return &BatchProcessor{
		imports:   imports,
		results:   results,
		resultTTL: resultTTL,
		log:       log.With().Str("component", "batch_processor").Logger(),
	}
}

func (p *BatchProcessor) ProcessBatch(ctx context.Context, msg *Message) error {
	var payload BatchPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return apperr.BadRequest("invalid batch payload").WithError(err)
	}
	if payload.UserID == uuid.Nil {
		return apperr.MissingField("user_id")
	}

	result, err := p.imports.ImportEmails(ctx, payload.UserID, &payload.Request)
	if err != nil {
		return err
	}

	// 결과 저장 실패는 재시도 대상
	if err := p.results.SaveResult(ctx, result, p.resultTTL); err != nil {
		return apperr.ExternalError("result store", err)
	}

	p.log.Info().
		Str("job_id", msg.ID).
		Str("batch_id", result.ID.String()).
		Int("emails", len(result.Emails)).
		Int("accepted", result.Accepted).
		Int("imported", result.Imported).
		Msg("batch job completed")
	return nil
}
