package extraction

import (
	"context"
	"strings"

	"order_worker/core/domain"
	"order_worker/core/port/in"
	"order_worker/core/port/out"
	"order_worker/core/service/categorize"
	"order_worker/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ImportService loads emails from the email store and runs them through the
// orchestrator or the batch pipeline.
type ImportService struct {
	emails      out.EmailSource
	inventory   out.InventoryRepository
	extractor   EmailExtractor
	batch       in.BatchService
	categorizer *categorize.Categorizer
	maxEmails   int
	log         zerolog.Logger
}

// NewImportService creates the service. maxEmails caps one import request;
// 0 means unlimited.
func NewImportService(
	emails out.EmailSource,
	inventory out.InventoryRepository,
	extractor EmailExtractor,
	batch in.BatchService,
	categorizer *categorize.Categorizer,
	maxEmails int,
	log zerolog.Logger,
) *ImportService {
	if categorizer == nil {
		categorizer = categorize.New()
	}
	return &ImportService{
		emails:      emails,
		inventory:   inventory,
		extractor:   extractor,
		batch:       batch,
		categorizer: categorizer,
		maxEmails:   maxEmails,
		log:         log.With().Str("component", "import_service").Logger(),
	}
}

// ExtractEmail extracts one email and flags products the user already owns.
// Nothing is written.
func (s *ImportService) ExtractEmail(ctx context.Context, userID uuid.UUID, req *in.ExtractEmailRequest) (*in.ExtractEmailResponse, error) {
	if req == nil {
		return nil, apperr.BadRequest("request body is required")
	}

	email := req.Email
	if email == nil {
		if strings.TrimSpace(req.EmailID) == "" {
			return nil, apperr.MissingField("email_id")
		}
		if s.emails == nil {
			return nil, apperr.ConfigError("email source not configured")
		}
		var err error
		email, err = s.emails.Get(ctx, userID, req.EmailID)
		if err != nil {
			return nil, err
		}
	} else if strings.TrimSpace(email.ID) == "" {
		return nil, apperr.BadRequest("email.id is required")
	}

	res, err := s.extractor.Extract(ctx, email, req.Retailer, domain.ParseStrategy(req.Strategy))
	if err != nil {
		return nil, err
	}

	var items []domain.InventoryItem
	if s.inventory != nil {
		items, err = s.inventory.ListForUser(ctx, userID)
		if err != nil {
			return nil, apperr.DatabaseError("list inventory", err)
		}
	}

	products := make([]in.ExtractedProduct, 0, len(res.Products))
	for _, p := range res.Products {
		s.categorizer.Categorize(&p)
		products = append(products, in.ExtractedProduct{
			ExtractedProduct:   p,
			Duplicate:          IsDuplicate(p, items),
			NormalizedImageURL: p.NormalizedImageURL,
		})
	}

	return &in.ExtractEmailResponse{
		EmailID:  email.ID,
		Retailer: res.Retailer,
		Products: products,
	}, nil
}

// ImportEmails loads the requested emails and runs them as one batch.
func (s *ImportService) ImportEmails(ctx context.Context, userID uuid.UUID, req *in.ImportEmailsRequest) (*domain.BatchResult, error) {
	if req == nil || len(req.EmailIDs) == 0 {
		return nil, apperr.MissingField("email_ids")
	}
	if s.maxEmails > 0 && len(req.EmailIDs) > s.maxEmails {
		return nil, apperr.InvalidInput("email_ids", "too many emails in one request")
	}
	if s.emails == nil {
		return nil, apperr.ConfigError("email source not configured")
	}

	ids := dedupeIDs(req.EmailIDs)
	if req.SkipImported && s.inventory != nil {
		done, err := s.inventory.ImportedEmailIDs(ctx, userID, ids)
		if err != nil {
			return nil, apperr.DatabaseError("list imported emails", err)
		}
		kept := ids[:0]
		for _, id := range ids {
			if !done[id] {
				kept = append(kept, id)
			}
		}
		if skipped := len(ids) - len(kept); skipped > 0 {
			s.log.Debug().Str("user_id", userID.String()).Int("skipped", skipped).Msg("already imported emails skipped")
		}
		ids = kept
	}

	var emails []domain.EmailContent
	if len(ids) > 0 {
		var err error
		emails, err = s.emails.ListByIDs(ctx, userID, ids)
		if err != nil {
			return nil, err
		}
	}

	batchID := req.BatchID
	if batchID == uuid.Nil {
		batchID = uuid.New()
	}
	return s.batch.RunBatch(ctx, &domain.BatchRequest{
		ID:           batchID,
		UserID:       userID,
		Emails:       emails,
		RetailerHint: req.Retailer,
		Strategy:     domain.ParseStrategy(req.Strategy),
		Import:       req.Import,
	})
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
