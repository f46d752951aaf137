package http

import (
	"context"
	"strings"

	"order_worker/core/domain"
	"order_worker/core/port/in"
	"order_worker/core/port/out"
	"order_worker/pkg/apperr"
	"order_worker/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// BatchQueue hands a batch to the background worker and returns its id.
type BatchQueue interface {
	PublishBatch(ctx context.Context, userID uuid.UUID, req in.ImportEmailsRequest) (uuid.UUID, error)
}

type ExtractionHandler struct {
	imports     in.ImportService
	categorizer in.Categorizer
	emails      out.EmailStore       // optional
	queue       BatchQueue           // optional; nil disables async batches
	results     out.BatchResultStore // optional
}

func NewExtractionHandler(
	imports in.ImportService,
	categorizer in.Categorizer,
	emails out.EmailStore,
	queue BatchQueue,
	results out.BatchResultStore,
) *ExtractionHandler {
	return &ExtractionHandler{
		imports:     imports,
		categorizer: categorizer,
		emails:      emails,
		queue:       queue,
		results:     results,
	}
}

func (h *ExtractionHandler) Register(router fiber.Router) {
	router.Post("/extract", h.Extract)
	router.Post("/extract/batch", h.ExtractBatch)
	router.Get("/extract/batch/:id", h.GetBatch)
	router.Post("/categorize", h.Categorize)
	router.Post("/emails", h.SaveEmail)
}

// =============================================================================
// Extraction
// =============================================================================

// Extract handles POST /extract. Nothing is written to the inventory.
func (h *ExtractionHandler) Extract(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req in.ExtractEmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.imports.ExtractEmail(c.UserContext(), userID, &req)
	if err != nil {
		return err
	}
	return response.OKWithTotal(c, res, len(res.Products))
}

type batchRequest struct {
	in.ImportEmailsRequest
	// Async queues the batch and returns its id for polling.
	Async bool `json:"async"`
}

type batchQueued struct {
	BatchID uuid.UUID `json:"batch_id"`
	Status  string    `json:"status"`
}

// ExtractBatch handles POST /extract/batch.
func (h *ExtractionHandler) ExtractBatch(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req batchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.BatchID = uuid.Nil // server assigned

	if !req.Async {
		result, err := h.imports.ImportEmails(c.UserContext(), userID, &req.ImportEmailsRequest)
		if err != nil {
			return err
		}
		return response.OK(c, newBatchSummary(result))
	}

	if h.queue == nil {
		return apperr.ConfigError("background batches are not enabled")
	}
	if len(req.EmailIDs) == 0 {
		return apperr.MissingField("email_ids")
	}
	batchID, err := h.queue.PublishBatch(c.UserContext(), userID, req.ImportEmailsRequest)
	if err != nil {
		return apperr.ExternalError("queue", err)
	}
	return response.Accepted(c, batchQueued{BatchID: batchID, Status: "queued"})
}

// GetBatch handles GET /extract/batch/:id for queued batches.
func (h *ExtractionHandler) GetBatch(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	if h.results == nil {
		return apperr.ConfigError("batch results are not enabled")
	}

	batchID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.InvalidInput("id", "must be a UUID")
	}

	result, err := h.results.GetResult(c.UserContext(), batchID.String())
	if err != nil {
		return err
	}
	// 다른 사용자의 배치는 존재하지 않는 것으로 응답
	if result.UserID != userID {
		return apperr.NotFound("batch result")
	}
	return response.OK(c, newBatchSummary(result))
}

// batchSummary adds per-status counts to a batch result.
type batchSummary struct {
	*domain.BatchResult
	Succeeded int `json:"succeeded"`
	Empty     int `json:"empty"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func newBatchSummary(r *domain.BatchResult) batchSummary {
	return batchSummary{
		BatchResult: r,
		Succeeded:   r.CountByStatus(domain.EmailSucceeded),
		Empty:       r.CountByStatus(domain.EmailEmpty),
		Failed:      r.CountByStatus(domain.EmailFailed),
		Skipped:     r.CountByStatus(domain.EmailSkipped),
	}
}

// =============================================================================
// Categorize
// =============================================================================

type categorizeRequest struct {
	Products []domain.ExtractedProduct `json:"products"`
}

type categorizedProduct struct {
	Name     string `json:"name"`
	Brand    string `json:"brand,omitempty"`
	Category string `json:"category"`
}

// Categorize handles POST /categorize.
func (h *ExtractionHandler) Categorize(c *fiber.Ctx) error {
	var req categorizeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if len(req.Products) == 0 {
		return apperr.MissingField("products")
	}

	labels := make([]categorizedProduct, len(req.Products))
	for i, p := range req.Products {
		labels[i] = categorizedProduct{
			Name:     p.Name,
			Brand:    p.Brand,
			Category: h.categorizer.Assign(p),
		}
	}
	return response.OKWithTotal(c, labels, len(labels))
}

// =============================================================================
// Email ingest
// =============================================================================

// SaveEmail handles POST /emails, storing an order email for later
// extraction by id.
func (h *ExtractionHandler) SaveEmail(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	if h.emails == nil {
		return apperr.ConfigError("email store not configured")
	}

	var email domain.EmailContent
	if err := parseBody(c, &email); err != nil {
		return err
	}
	email.ID = strings.TrimSpace(email.ID)
	if email.ID == "" {
		return apperr.MissingField("id")
	}
	if !email.HasBody() {
		return apperr.MissingField("htmlBody")
	}

	if err := h.emails.Save(c.UserContext(), userID, &email); err != nil {
		return apperr.DatabaseError("save email", err)
	}
	return response.Created(c, fiber.Map{"id": email.ID})
}
