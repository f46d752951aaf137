package extraction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"order_worker/core/domain"
	"order_worker/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor answers per email id.
type fakeExtractor struct {
	mu       sync.Mutex
	calls    []string
	products map[string][]domain.ExtractedProduct
	errs     map[string]error
	failures map[string]string
}

func (f *fakeExtractor) Extract(_ context.Context, email *domain.EmailContent, hint string, _ domain.Strategy) (*Extraction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, email.ID)
	f.mu.Unlock()

	if err := f.errs[email.ID]; err != nil {
		return nil, err
	}
	res := &Extraction{EmailID: email.ID, Retailer: hint, Products: []domain.ExtractedProduct{}}
	if msg, ok := f.failures[email.ID]; ok {
		res.Stages = []domain.StageReport{{Stage: domain.StageGeneric, Outcome: domain.OutcomeFailure, Error: msg}}
		return res, nil
	}
	for _, p := range f.products[email.ID] {
		p.EmailID = email.ID
		p.Retailer = hint
		res.Products = append(res.Products, p)
	}
	outcome := domain.OutcomeEmpty
	if len(res.Products) > 0 {
		outcome = domain.OutcomeSuccess
	}
	res.Stages = []domain.StageReport{{Stage: domain.StageGeneric, Outcome: outcome, Products: len(res.Products)}}
	return res, nil
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func emailStatuses(r *domain.BatchResult) map[string]domain.EmailStatus {
	out := make(map[string]domain.EmailStatus, len(r.Emails))
	for _, e := range r.Emails {
		out[e.EmailID] = e.Status
	}
	return out
}

func TestBatchService_ReceivedOrderAndDuplicates(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	extractor := &fakeExtractor{products: map[string][]domain.ExtractedProduct{
		"e-early": {{Brand: "Zara", Name: "Linen Shirt"}},
		"e-mid":   {{Brand: "H&M", Name: "Regular Fit T-shirt"}, {Brand: "Nike", Name: "Air Max"}},
		"e-late":  {{Brand: "Zara", Name: "Linen Shirt"}},
	}}
	inventory := &fakeInventory{items: []domain.InventoryItem{{Brand: "Nike", Name: "Air Max"}}}
	svc := NewBatchService(extractor, nil, inventory, inventory, 3, zerolog.Nop())

	res, err := svc.RunBatch(context.Background(), &domain.BatchRequest{
		UserID: uuid.New(),
		Emails: []domain.EmailContent{
			{ID: "e-late", ReceivedAt: base.Add(2 * time.Hour)},
			{ID: "e-early", ReceivedAt: base},
			{ID: "e-mid", ReceivedAt: base.Add(time.Hour)},
		},
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, res.ID)
	require.Len(t, res.Emails, 3)
	assert.Equal(t, "e-early", res.Emails[0].EmailID)
	assert.Equal(t, "e-mid", res.Emails[1].EmailID)
	assert.Equal(t, "e-late", res.Emails[2].EmailID)

	early, mid, late := res.Emails[0], res.Emails[1], res.Emails[2]
	assert.Equal(t, domain.EmailSucceeded, early.Status)
	require.Len(t, early.Products, 1)
	assert.Equal(t, "Casual Shirts", early.Products[0].Category)

	assert.Equal(t, 2, mid.Found)
	assert.Equal(t, 1, mid.Duplicates)
	require.Len(t, mid.Products, 1)
	assert.Equal(t, "T-Shirts", mid.Products[0].Category)

	assert.Equal(t, domain.EmailSucceeded, late.Status)
	assert.Equal(t, 1, late.Duplicates, "earlier email in the batch already owns it")
	assert.NotNil(t, late.Products)
	assert.Empty(t, late.Products)

	assert.Equal(t, 4, res.TotalFound)
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 2, res.Duplicates)
	assert.Len(t, res.AcceptedProducts(), 2)
	assert.False(t, res.Cancelled)
	assert.Zero(t, res.Imported)
	assert.Empty(t, inventory.added)
	assert.False(t, res.CompletedAt.Before(res.StartedAt))
}

func TestBatchService_EmailStatuses(t *testing.T) {
	extractor := &fakeExtractor{
		products: map[string][]domain.ExtractedProduct{"e4": {{Name: "Denim Jacket"}}},
		errs:     map[string]error{"e1": apperr.BadRequest("email is required")},
		failures: map[string]string{"e2": "parser exploded"},
	}
	svc := NewBatchService(extractor, nil, nil, nil, 2, zerolog.Nop())

	res, err := svc.RunBatch(context.Background(), &domain.BatchRequest{
		Emails: []domain.EmailContent{{ID: "e3"}, {ID: "e1"}, {ID: "e4"}, {ID: "e2"}},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]domain.EmailStatus{
		"e1": domain.EmailFailed,
		"e2": domain.EmailFailed,
		"e3": domain.EmailEmpty,
		"e4": domain.EmailSucceeded,
	}, emailStatuses(res))
	assert.Equal(t, "e1", res.Emails[0].EmailID, "equal timestamps order by id")
	assert.Contains(t, res.Emails[0].Error, "email is required")
	assert.Equal(t, "parser exploded", res.Emails[1].Error)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 4, extractor.Calls())
}

func TestBatchService_CancelledBeforeStart(t *testing.T) {
	extractor := &fakeExtractor{products: map[string][]domain.ExtractedProduct{"e1": {{Name: "Tee"}}}}
	svc := NewBatchService(extractor, nil, nil, nil, 2, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.RunBatch(ctx, &domain.BatchRequest{
		Emails: []domain.EmailContent{{ID: "e1"}, {ID: "e2"}},
	})

	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 2, res.CountByStatus(domain.EmailSkipped))
	assert.Zero(t, extractor.Calls())
	assert.Zero(t, res.Accepted)
}

func TestBatchService_Import(t *testing.T) {
	extractor := &fakeExtractor{products: map[string][]domain.ExtractedProduct{
		"e1": {{Brand: "Zara", Name: "Linen Shirt"}, {Brand: "Zara", Name: "Straight Fit Jeans"}},
	}}

	t.Run("stores accepted products", func(t *testing.T) {
		inventory := &fakeInventory{}
		svc := NewBatchService(extractor, nil, inventory, inventory, 1, zerolog.Nop())

		res, err := svc.RunBatch(context.Background(), &domain.BatchRequest{
			Emails:       []domain.EmailContent{{ID: "e1"}},
			RetailerHint: "Zara",
			Import:       true,
		})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Imported)
		require.Len(t, inventory.added, 2)
		assert.Equal(t, "Zara", inventory.added[0].Retailer)
		assert.NotEmpty(t, inventory.added[1].Category)
	})

	t.Run("write failure", func(t *testing.T) {
		inventory := &fakeInventory{addErr: errors.New("connection reset")}
		svc := NewBatchService(extractor, nil, inventory, inventory, 1, zerolog.Nop())

		_, err := svc.RunBatch(context.Background(), &domain.BatchRequest{
			Emails: []domain.EmailContent{{ID: "e1"}},
			Import: true,
		})

		require.Error(t, err)
		assert.True(t, apperr.IsCode(err, apperr.CodeDatabaseError))
	})

	t.Run("no writer reports only", func(t *testing.T) {
		svc := NewBatchService(extractor, nil, nil, nil, 1, zerolog.Nop())

		res, err := svc.RunBatch(context.Background(), &domain.BatchRequest{
			Emails: []domain.EmailContent{{ID: "e1"}},
			Import: true,
		})

		require.NoError(t, err)
		assert.Zero(t, res.Imported)
		assert.Equal(t, 2, res.Accepted)
	})
}

func TestBatchService_InvalidInput(t *testing.T) {
	svc := NewBatchService(&fakeExtractor{}, nil, &fakeInventory{listErr: errors.New("db down")}, nil, 0, zerolog.Nop())

	_, err := svc.RunBatch(context.Background(), nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeBadRequest))

	_, err = svc.RunBatch(context.Background(), &domain.BatchRequest{Emails: []domain.EmailContent{{ID: "e1"}}})
	assert.True(t, apperr.IsCode(err, apperr.CodeDatabaseError))
}

func TestBatchService_EmptyBatch(t *testing.T) {
	svc := NewBatchService(&fakeExtractor{}, nil, nil, nil, 4, zerolog.Nop())

	res, err := svc.RunBatch(context.Background(), &domain.BatchRequest{ID: uuid.New()})

	require.NoError(t, err)
	assert.Empty(t, res.Emails)
	assert.False(t, res.Cancelled)
}
