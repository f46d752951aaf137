package persistence

import (
	"context"
	"strings"
	"testing"
	"time"

	"order_worker/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRow(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	row := toRow(userID, domain.ExtractedProduct{
		Name:     "Linen Shirt",
		Brand:    "  ",
		Price:    "₹1,299",
		Quantity: 2,
		Retailer: "myntra",
		EmailID:  "e1",
	}, now)

	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.Equal(t, userID, row.UserID)
	assert.Equal(t, domain.UnknownBrand, row.Brand)
	assert.Equal(t, "₹1,299", row.Price)
	assert.Equal(t, 2, row.Quantity)
	assert.Equal(t, now, row.CreatedAt)
}

func TestInsertInventoryQuery(t *testing.T) {
	for _, col := range inventoryColumns {
		assert.Contains(t, insertInventoryQuery, ":"+col)
	}
	assert.True(t, strings.Contains(insertInventoryQuery, "ON CONFLICT (user_id, brand, name) DO NOTHING"))
}

func TestAddItems_Guards(t *testing.T) {
	repo := NewInventoryRepository(nil)

	_, err := repo.AddItems(context.Background(), uuid.Nil, []domain.ExtractedProduct{{Name: "x"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	n, err := repo.AddItems(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	ids, err := repo.ImportedEmailIDs(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
