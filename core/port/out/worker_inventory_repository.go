package out

import (
	"context"

	"order_worker/core/domain"

	"github.com/google/uuid"
)

// InventorySnapshot 사용자 인벤토리 읽기 전용 조회
type InventorySnapshot interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.InventoryItem, error)
}

// InventoryRepository adds write access used when a batch imports items.
type InventoryRepository interface {
	InventorySnapshot

	// AddItems inserts accepted products and returns how many were stored.
	AddItems(ctx context.Context, userID uuid.UUID, products []domain.ExtractedProduct) (int, error)

	// ImportedEmailIDs returns the subset of emailIDs that already produced
	// inventory items for the user.
	ImportedEmailIDs(ctx context.Context, userID uuid.UUID, emailIDs []string) (map[string]bool, error)
}
