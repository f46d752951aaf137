package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order_worker/core/domain"
	"order_worker/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// InventoryRepository implements out.InventoryRepository on Postgres.
//
// Schema:
//
//	CREATE TABLE inventory_items (
//	    id             UUID PRIMARY KEY,
//	    user_id        UUID NOT NULL,
//	    name           TEXT NOT NULL,
//	    brand          TEXT NOT NULL DEFAULT '',
//	    category       TEXT NOT NULL DEFAULT '',
//	    price          TEXT NOT NULL DEFAULT '',
//	    original_price TEXT NOT NULL DEFAULT '',
//	    size           TEXT NOT NULL DEFAULT '',
//	    color          TEXT NOT NULL DEFAULT '',
//	    image_url      TEXT NOT NULL DEFAULT '',
//	    product_link   TEXT NOT NULL DEFAULT '',
//	    quantity       INT  NOT NULL DEFAULT 1,
//	    retailer       TEXT NOT NULL DEFAULT '',
//	    email_id       TEXT NOT NULL DEFAULT '',
//	    order_id       TEXT NOT NULL DEFAULT '',
//	    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    UNIQUE (user_id, brand, name)
//	);
type InventoryRepository struct {
	db *sqlx.DB
}

var _ out.InventoryRepository = (*InventoryRepository)(nil)

// NewInventoryRepository creates a new InventoryRepository
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// inventoryRow is the insert shape of one accepted product.
type inventoryRow struct {
	ID            uuid.UUID `db:"id"`
	UserID        uuid.UUID `db:"user_id"`
	Name          string    `db:"name"`
	Brand         string    `db:"brand"`
	Category      string    `db:"category"`
	Price         string    `db:"price"`
	OriginalPrice string    `db:"original_price"`
	Size          string    `db:"size"`
	Color         string    `db:"color"`
	ImageURL      string    `db:"image_url"`
	ProductLink   string    `db:"product_link"`
	Quantity      int       `db:"quantity"`
	Retailer      string    `db:"retailer"`
	EmailID       string    `db:"email_id"`
	OrderID       string    `db:"order_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// toRow stores the UnknownBrand sentinel for missing brands so the unique
// key matches the duplicate rule.
func toRow(userID uuid.UUID, p domain.ExtractedProduct, now time.Time) inventoryRow {
	return inventoryRow{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          p.Name,
		Brand:         p.BrandOrUnknown(),
		Category:      p.Category,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Size:          p.Size,
		Color:         p.Color,
		ImageURL:      p.ImageURL,
		ProductLink:   p.ProductLink,
		Quantity:      p.Quantity,
		Retailer:      p.Retailer,
		EmailID:       p.EmailID,
		OrderID:       p.OrderID,
		CreatedAt:     now,
	}
}

// =============================================================================
// Reads
// =============================================================================

func (r *InventoryRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.InventoryItem, error) {
	query := `
		SELECT id, user_id, name, brand, category, image_url, retailer, email_id, created_at
		FROM inventory_items
		WHERE user_id = $1
		ORDER BY created_at`

	var items []domain.InventoryItem
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

func (r *InventoryRepository) ImportedEmailIDs(ctx context.Context, userID uuid.UUID, emailIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(emailIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT DISTINCT email_id
		FROM inventory_items
		WHERE user_id = $1 AND email_id = ANY($2)`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, pq.Array(emailIDs)); err != nil {
		return nil, fmt.Errorf("imported email ids: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// =============================================================================
// Writes
// =============================================================================

// AddItems inserts products in one transaction. Rows that collide with an
// existing (user, brand, name) are skipped and not counted.
func (r *InventoryRepository) AddItems(ctx context.Context, userID uuid.UUID, products []domain.ExtractedProduct) (int, error) {
	if userID == uuid.Nil {
		return 0, ErrInvalidInput
	}
	if len(products) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([]inventoryRow, len(products))
	for i, p := range products {
		rows[i] = toRow(userID, p, now)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.NamedExecContext(ctx, insertInventoryQuery, rows)
	if err != nil {
		return 0, fmt.Errorf("insert inventory items: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

var insertInventoryQuery = `
	INSERT INTO inventory_items (` + strings.Join(inventoryColumns, ", ") + `)
	VALUES (:` + strings.Join(inventoryColumns, ", :") + `)
	ON CONFLICT (user_id, brand, name) DO NOTHING`

var inventoryColumns = []string{
	"id", "user_id", "name", "brand", "category", "price", "original_price",
	"size", "color", "image_url", "product_link", "quantity", "retailer",
	"email_id", "order_id", "created_at",
}
