package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"order_worker/core/domain"
	"order_worker/core/port/out"
	"order_worker/pkg/metrics"
	"order_worker/pkg/resilience"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Stage fakes
// =============================================================================

type fakeSemantic struct {
	mu        sync.Mutex
	calls     int
	retailers []string
	products  []domain.ExtractedProduct
	errs      []error // returned in order before products
	panicMsg  string
}

func (f *fakeSemantic) Extract(_ context.Context, _ *domain.EmailContent, retailer string) ([]domain.ExtractedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.retailers = append(f.retailers, retailer)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return append([]domain.ExtractedProduct(nil), f.products...), nil
}

func (f *fakeSemantic) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGeneric struct {
	mu       sync.Mutex
	calls    int
	products []domain.ExtractedProduct
	err      error
}

func (f *fakeGeneric) Parse(_ *domain.EmailContent) ([]domain.ExtractedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.ExtractedProduct(nil), f.products...), nil
}

func (f *fakeGeneric) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// =============================================================================
// Port fakes
// =============================================================================

type fakeLLM struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
	system   string
	user     string
	opts     out.CompletionOptions

	started chan struct{} // signalled on entry when set
	release chan struct{} // blocks until closed when set
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userContent string, opts out.CompletionOptions) (string, error) {
	f.mu.Lock()
	f.calls++
	f.system, f.user, f.opts = systemPrompt, userContent, opts
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]domain.ExtractedProduct
	ttls    map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string][]domain.ExtractedProduct),
		ttls:    make(map[string]time.Duration),
	}
}

func (c *fakeCache) GetProducts(_ context.Context, key string) ([]domain.ExtractedProduct, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[key]
	return p, ok, nil
}

func (c *fakeCache) SetProducts(_ context.Context, key string, products []domain.ExtractedProduct, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = products
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type fakeInventory struct {
	mu       sync.Mutex
	items    []domain.InventoryItem
	imported map[string]bool
	added    []domain.ExtractedProduct
	listErr  error
	addErr   error
}

func (f *fakeInventory) ListForUser(_ context.Context, _ uuid.UUID) ([]domain.InventoryItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeInventory) AddItems(_ context.Context, _ uuid.UUID, products []domain.ExtractedProduct) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.added = append(f.added, products...)
	return len(products), nil
}

func (f *fakeInventory) ImportedEmailIDs(_ context.Context, _ uuid.UUID, emailIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range emailIDs {
		if f.imported[id] {
			out[id] = true
		}
	}
	return out, nil
}

type fakeEmails struct {
	emails    map[string]domain.EmailContent
	requested []string
}

func (f *fakeEmails) Get(_ context.Context, _ uuid.UUID, emailID string) (*domain.EmailContent, error) {
	e, ok := f.emails[emailID]
	if !ok {
		return nil, errors.New("email not found")
	}
	return &e, nil
}

func (f *fakeEmails) ListByIDs(_ context.Context, _ uuid.UUID, emailIDs []string) ([]domain.EmailContent, error) {
	f.requested = append([]string(nil), emailIDs...)
	var out []domain.EmailContent
	for _, id := range emailIDs {
		if e, ok := f.emails[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// =============================================================================
// Helpers
// =============================================================================

func testRetry() resilience.RetryOptions {
	return resilience.RetryOptions{MaxRetries: 2, BaseDelay: time.Millisecond}
}

func newTestOrchestrator(semantic SemanticStage, generic FallbackStage, stats *metrics.StageRegistry) *Orchestrator {
	cfg := DefaultOrchestratorConfig()
	cfg.Retry = testRetry()
	return NewOrchestrator(nil, semantic, generic, stats, cfg, zerolog.Nop())
}

func fixture(t *testing.T, path ...string) string {
	t.Helper()
	body, err := os.ReadFile(filepath.Join(path...))
	require.NoError(t, err)
	return string(body)
}
