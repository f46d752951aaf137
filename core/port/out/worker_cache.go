package out

import (
	"context"
	"time"

	"order_worker/core/domain"
)

// ExtractionCache stores semantic extraction results keyed by content hash.
type ExtractionCache interface {
	// GetProducts returns (nil, false, nil) on a miss.
	GetProducts(ctx context.Context, key string) ([]domain.ExtractedProduct, bool, error)
	SetProducts(ctx context.Context, key string, products []domain.ExtractedProduct, ttl time.Duration) error
}

// BatchResultStore keeps batch summaries for later polling.
type BatchResultStore interface {
	SaveResult(ctx context.Context, result *domain.BatchResult, ttl time.Duration) error
	GetResult(ctx context.Context, batchID string) (*domain.BatchResult, error)
}
