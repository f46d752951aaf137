package in

import (
	"context"

	"order_worker/core/domain"

	"github.com/google/uuid"
)

type ExtractionService interface {
	// Run extracts products from one email. Stage failures are absorbed;
	// an error means the request itself could not be handled.
	Run(ctx context.Context, email *domain.EmailContent, retailerHint string, strategy domain.Strategy) ([]domain.ExtractedProduct, error)
}

type Categorizer interface {
	// Assign returns the category label for p without mutating it.
	Assign(p domain.ExtractedProduct) string
}

type BatchService interface {
	RunBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error)
}

// ImportService loads emails by id and runs them through the batch pipeline.
type ImportService interface {
	ExtractEmail(ctx context.Context, userID uuid.UUID, req *ExtractEmailRequest) (*ExtractEmailResponse, error)
	ImportEmails(ctx context.Context, userID uuid.UUID, req *ImportEmailsRequest) (*domain.BatchResult, error)
}

type ExtractEmailRequest struct {
	EmailID  string               `json:"email_id,omitempty"`
	Email    *domain.EmailContent `json:"email,omitempty"` // inline content takes precedence over email_id
	Retailer string               `json:"retailer,omitempty"`
	Strategy string               `json:"strategy,omitempty"`
}

type ExtractEmailResponse struct {
	EmailID  string             `json:"email_id"`
	Retailer string             `json:"retailer"`
	Products []ExtractedProduct `json:"products"`
}

// ExtractedProduct is a product annotated with duplicate evidence.
type ExtractedProduct struct {
	domain.ExtractedProduct
	Duplicate          bool   `json:"duplicate"`
	NormalizedImageURL string `json:"normalizedImageUrl,omitempty"`
}

type ImportEmailsRequest struct {
	EmailIDs []string `json:"email_ids"`
	Retailer string   `json:"retailer,omitempty"`
	Strategy string   `json:"strategy,omitempty"`
	Import   bool     `json:"import"`
	// SkipImported drops emails that already produced inventory items.
	SkipImported bool `json:"skip_imported"`
	// BatchID is preassigned when the batch is queued; empty means generate.
	BatchID uuid.UUID `json:"batch_id,omitempty"`
}
