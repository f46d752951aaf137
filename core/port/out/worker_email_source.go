package out

import (
	"context"

	"order_worker/core/domain"

	"github.com/google/uuid"
)

// EmailSource 이메일 원문(제목/발신자/HTML/텍스트) 조회
type EmailSource interface {
	Get(ctx context.Context, userID uuid.UUID, emailID string) (*domain.EmailContent, error)
	ListByIDs(ctx context.Context, userID uuid.UUID, emailIDs []string) ([]domain.EmailContent, error)
}

// EmailStore persists order emails so they can be extracted later by ID.
type EmailStore interface {
	Save(ctx context.Context, userID uuid.UUID, email *domain.EmailContent) error
}
