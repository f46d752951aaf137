package extraction

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"order_worker/core/domain"
	"order_worker/pkg/apperr"
	"order_worker/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageNames(res *Extraction) []string {
	names := make([]string, len(res.Stages))
	for i, s := range res.Stages {
		names[i] = s.Stage + ":" + string(s.Outcome)
	}
	return names
}

// =============================================================================
// Order emails end to end
// =============================================================================

func TestOrchestrator_HMArticleRowsWithHint(t *testing.T) {
	semantic := &fakeSemantic{}
	generic := &fakeGeneric{}
	o := newTestOrchestrator(semantic, generic, nil)

	email := &domain.EmailContent{
		ID:       "hm-1",
		Subject:  "Your order confirmation",
		HTMLBody: fixture(t, "retailer", "testdata", "hm_article_row.html"),
	}
	res, err := o.Extract(context.Background(), email, "H&M", domain.StrategyAuto)

	require.NoError(t, err)
	assert.Equal(t, []string{"custom:success"}, stageNames(res))
	assert.Zero(t, semantic.Calls(), "structural success must short-circuit the chain")
	assert.Zero(t, generic.Calls())

	require.Len(t, res.Products, 1)
	p := res.Products[0]
	assert.Equal(t, "Regular Fit T-shirt", p.Name)
	assert.Equal(t, "H&M", p.Retailer)
	assert.Equal(t, "hm-1", p.EmailID)
	assert.Equal(t, "₹599", p.Price)
	assert.Equal(t, "₹999", p.OriginalPrice)
	assert.Equal(t, "₹400", p.Discount)
	assert.Equal(t, 2, p.Quantity)
	assert.Equal(t, "70012345678", p.OrderID)
}

func TestOrchestrator_HMForwardedDetectedFromSender(t *testing.T) {
	o := newTestOrchestrator(&fakeSemantic{}, &fakeGeneric{}, nil)

	email := &domain.EmailContent{
		ID:       "hm-2",
		From:     "H&M <no-reply@delivery.hm.com>",
		Subject:  "Fwd: Your order",
		HTMLBody: fixture(t, "retailer", "testdata", "hm_forwarded.html"),
	}
	res, err := o.Extract(context.Background(), email, "", domain.StrategyAuto)

	require.NoError(t, err)
	assert.Equal(t, "H&M", res.Retailer)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Relaxed Fit Hoodie", res.Products[0].Name)
	assert.Equal(t, "H&M", res.Products[0].Retailer)
	assert.Contains(t, res.Products[0].ProductLink, "productpage.0987654001.html")
	assert.NotEmpty(t, res.Products[0].NormalizedImageURL)
}

func TestOrchestrator_HintOverridesDetection(t *testing.T) {
	body := fixture(t, "retailer", "testdata", "zara_cards.html")
	newEmail := func() *domain.EmailContent {
		return &domain.EmailContent{ID: "z-1", From: "orders@myntra.com", HTMLBody: body}
	}

	t.Run("hint wins", func(t *testing.T) {
		semantic := &fakeSemantic{}
		o := newTestOrchestrator(semantic, &fakeGeneric{}, nil)

		res, err := o.Extract(context.Background(), newEmail(), " Zara ", domain.StrategyAuto)

		require.NoError(t, err)
		assert.Equal(t, "Zara", res.Retailer)
		require.Len(t, res.Products, 2)
		for _, p := range res.Products {
			assert.Equal(t, "Zara", p.Retailer)
		}
		assert.Zero(t, semantic.Calls())
	})

	t.Run("detection without hint", func(t *testing.T) {
		semantic := &fakeSemantic{products: []domain.ExtractedProduct{{Name: "Straight Fit Jeans"}}}
		o := newTestOrchestrator(semantic, &fakeGeneric{}, nil)

		res, err := o.Extract(context.Background(), newEmail(), "", domain.StrategyAuto)

		require.NoError(t, err)
		assert.Equal(t, "Myntra", res.Retailer)
		// myntra templates find nothing; nested tables send it to the model
		assert.Equal(t, []string{"custom:empty", "ai:success"}, stageNames(res))
		assert.Equal(t, []string{"Myntra"}, semantic.retailers)
		require.Len(t, res.Products, 1)
		assert.Equal(t, "Myntra", res.Products[0].Retailer)
	})
}

func TestOrchestrator_TextOnlyUnknownSenderSkipsSemantic(t *testing.T) {
	semantic := &fakeSemantic{products: []domain.ExtractedProduct{{Name: "Should Not Appear"}}}
	generic := &fakeGeneric{}
	o := newTestOrchestrator(semantic, generic, nil)

	email := &domain.EmailContent{
		ID:       "c-1",
		From:     "orders@example.com",
		TextBody: "Thanks for your order. It ships tomorrow.",
	}
	res, err := o.Extract(context.Background(), email, "", domain.StrategyAuto)

	require.NoError(t, err)
	assert.Zero(t, semantic.Calls())
	assert.Equal(t, 1, generic.Calls())
	assert.Empty(t, res.Products)
	assert.NotNil(t, res.Products)
	assert.Equal(t, []string{"generic:empty"}, stageNames(res))
}

func TestOrchestrator_MalformedModelOutputFallsBackToTable(t *testing.T) {
	llm := &fakeLLM{response: "Sure! Here are the products: Blue Denim Jacket"}
	semantic := NewSemanticExtractor(llm, nil, DefaultSemanticConfig(), zerolog.Nop())
	o := newTestOrchestrator(semantic, NewGenericParser(), nil)

	email := &domain.EmailContent{
		ID:       "d-1",
		Subject:  "Order placed",
		HTMLBody: fixture(t, "testdata", "generic_table.html"),
	}
	res, err := o.Extract(context.Background(), email, "Acme Fashion", domain.StrategyAuto)

	require.NoError(t, err)
	assert.Equal(t, 1, llm.Calls(), "malformed output is never retried")
	assert.Equal(t, []string{"ai:failure", "generic:success"}, stageNames(res))
	assert.Contains(t, res.Stages[0].Error, "malformed")

	require.Len(t, res.Products, 1)
	p := res.Products[0]
	assert.Equal(t, "Blue Denim Jacket", p.Name)
	assert.Equal(t, "₹2,499", p.Price)
	assert.Equal(t, "M", p.Size)
	assert.Equal(t, "Blue", p.Color)
	assert.Equal(t, "Acme Fashion", p.Retailer)
	assert.Equal(t, 1, p.Quantity)
}

// =============================================================================
// Chain behaviour
// =============================================================================

func TestOrchestrator_RetriesTransientSemanticFailures(t *testing.T) {
	semantic := &fakeSemantic{
		errs: []error{
			apperr.UpstreamTransient("llm", http.StatusServiceUnavailable, errors.New("overloaded")),
			apperr.UpstreamTransient("llm", http.StatusTooManyRequests, errors.New("rate limit")),
		},
		products: []domain.ExtractedProduct{{Name: "Oversized Blazer", Price: "Rs. 3,499"}},
	}
	generic := &fakeGeneric{}
	o := newTestOrchestrator(semantic, generic, nil)

	email := &domain.EmailContent{ID: "r-1", HTMLBody: "<p>Oversized Blazer Rs. 3,499</p>"}
	res, err := o.Extract(context.Background(), email, "Acme", domain.StrategyAuto)

	require.NoError(t, err)
	assert.Equal(t, 3, semantic.Calls())
	assert.Zero(t, generic.Calls())
	require.Len(t, res.Products, 1)
	assert.Equal(t, "₹3,499", res.Products[0].Price)
}

func TestOrchestrator_ExhaustedRetriesFallThrough(t *testing.T) {
	transient := apperr.UpstreamTransient("llm", http.StatusBadGateway, errors.New("bad gateway"))
	semantic := &fakeSemantic{errs: []error{transient, transient, transient, transient}}
	generic := &fakeGeneric{products: []domain.ExtractedProduct{{Name: "Canvas Tote"}}}
	o := newTestOrchestrator(semantic, generic, nil)

	email := &domain.EmailContent{ID: "r-2", HTMLBody: "<div>Canvas Tote</div>"}
	res, err := o.Extract(context.Background(), email, "Acme", domain.StrategyAuto)

	require.NoError(t, err)
	assert.Equal(t, 3, semantic.Calls(), "one call plus two retries")
	assert.Equal(t, []string{"ai:failure", "generic:success"}, stageNames(res))
	assert.False(t, res.Failed())
}

func TestOrchestrator_PanickingStageIsContained(t *testing.T) {
	semantic := &fakeSemantic{panicMsg: "boom"}
	generic := &fakeGeneric{products: []domain.ExtractedProduct{{Name: "Rain Jacket"}}}
	o := newTestOrchestrator(semantic, generic, nil)

	email := &domain.EmailContent{ID: "p-1", HTMLBody: "<p>Rain Jacket</p>"}
	res, err := o.Extract(context.Background(), email, "Acme", domain.StrategyAuto)

	require.NoError(t, err)
	assert.Equal(t, []string{"ai:failure", "generic:success"}, stageNames(res))
	assert.Contains(t, res.Stages[0].Error, "boom")
	require.Len(t, res.Products, 1)
}

func TestOrchestrator_AllStagesFailing(t *testing.T) {
	semantic := &fakeSemantic{errs: []error{apperr.MalformedResponse("not a json object", nil)}}
	generic := &fakeGeneric{err: errors.New("parser exploded")}
	o := newTestOrchestrator(semantic, generic, nil)

	email := &domain.EmailContent{ID: "f-1", HTMLBody: "<p>hello</p>"}
	res, err := o.Extract(context.Background(), email, "Acme", domain.StrategyAuto)

	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, "parser exploded", res.LastError())
	assert.Empty(t, res.Products)
}

func TestOrchestrator_ForcedStrategies(t *testing.T) {
	hm := fixture(t, "retailer", "testdata", "hm_article_row.html")

	tests := []struct {
		name         string
		hint         string
		strategy     domain.Strategy
		wantStages   []string
		wantSemantic int
		wantGeneric  int
	}{
		{
			name:       "custom with parser",
			hint:       "hm",
			strategy:   domain.StrategyCustom,
			wantStages: []string{"custom:success"},
		},
		{
			name:       "custom without parser runs nothing",
			hint:       "uniqlo",
			strategy:   domain.StrategyCustom,
			wantStages: []string{},
		},
		{
			name:         "ai only",
			hint:         "hm",
			strategy:     domain.StrategyAI,
			wantStages:   []string{"ai:success"},
			wantSemantic: 1,
		},
		{
			name:        "generic only",
			hint:        "hm",
			strategy:    domain.StrategyGeneric,
			wantStages:  []string{"generic:success"},
			wantGeneric: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			semantic := &fakeSemantic{products: []domain.ExtractedProduct{{Name: "From Model"}}}
			generic := &fakeGeneric{products: []domain.ExtractedProduct{{Name: "From Generic"}}}
			o := newTestOrchestrator(semantic, generic, nil)

			email := &domain.EmailContent{ID: "s-1", HTMLBody: hm}
			res, err := o.Extract(context.Background(), email, tt.hint, tt.strategy)

			require.NoError(t, err)
			assert.Equal(t, tt.wantStages, stageNames(res))
			assert.Equal(t, tt.wantSemantic, semantic.Calls())
			assert.Equal(t, tt.wantGeneric, generic.Calls())
		})
	}
}

func TestOrchestrator_WithoutLanguageModel(t *testing.T) {
	generic := &fakeGeneric{products: []domain.ExtractedProduct{{Name: "Beanie"}}}
	o := newTestOrchestrator(nil, generic, nil)
	email := &domain.EmailContent{ID: "n-1", HTMLBody: "<p>Beanie</p>"}

	res, err := o.Extract(context.Background(), email, "Acme", domain.StrategyAuto)
	require.NoError(t, err)
	assert.Equal(t, []string{"generic:success"}, stageNames(res))

	res, err = o.Extract(context.Background(), email, "Acme", domain.StrategyAI)
	require.NoError(t, err)
	assert.Equal(t, []string{"ai:skipped"}, stageNames(res))
	assert.Empty(t, res.Products)
}

func TestOrchestrator_InputEdgeCases(t *testing.T) {
	semantic := &fakeSemantic{}
	generic := &fakeGeneric{}
	o := newTestOrchestrator(semantic, generic, nil)

	_, err := o.Extract(context.Background(), nil, "", domain.StrategyAuto)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeBadRequest))

	res, err := o.Extract(context.Background(), &domain.EmailContent{ID: "e-1", TextBody: "  "}, "zara", domain.StrategyAuto)
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Empty(t, res.Stages)
	assert.Zero(t, semantic.Calls())
	assert.Zero(t, generic.Calls())
}

func TestOrchestrator_DropsNamelessAndStampsProducts(t *testing.T) {
	generic := &fakeGeneric{products: []domain.ExtractedProduct{
		{Name: "   "},
		{Name: " Wool  Socks ", Retailer: "wrong", EmailID: "wrong", Quantity: 0, Price: "INR 299"},
	}}
	o := newTestOrchestrator(nil, generic, nil)

	products, err := o.Run(context.Background(), &domain.EmailContent{ID: "w-1", HTMLBody: "<p>x</p>"}, "Acme", "")

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Wool Socks", products[0].Name)
	assert.Equal(t, "Acme", products[0].Retailer)
	assert.Equal(t, "w-1", products[0].EmailID)
	assert.Equal(t, 1, products[0].Quantity)
	assert.Equal(t, "₹299", products[0].Price)
}

func TestOrchestrator_RecordsStageStats(t *testing.T) {
	stats := metrics.NewStageRegistry(16)
	o := newTestOrchestrator(&fakeSemantic{}, &fakeGeneric{}, stats)

	email := &domain.EmailContent{ID: "m-1", HTMLBody: fixture(t, "retailer", "testdata", "hm_article_row.html")}
	for i := 0; i < 3; i++ {
		_, err := o.Extract(context.Background(), email, "h&m", domain.StrategyAuto)
		require.NoError(t, err)
	}

	custom := stats.Stats(domain.StageCustom)
	assert.Equal(t, int64(3), custom.Outcomes[string(domain.OutcomeSuccess)])
	assert.Equal(t, int64(3), custom.Latency.Count)
	assert.Empty(t, stats.Stats(domain.StageAI).Outcomes)
}

// =============================================================================
// Complexity
// =============================================================================

func TestIsComplexHTML(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		threshold int
		want      bool
	}{
		{"short flat", "<table><tr><td>a</td></tr></table>", 5000, false},
		{"sibling tables", "<table></table><TABLE></TABLE>", 5000, false},
		{"nested table", "<table><tr><td><TABLE class=x></table></td></tr></table>", 5000, true},
		{"over threshold", strings.Repeat("a", 5001), 5000, true},
		{"at threshold", strings.Repeat("a", 5000), 5000, false},
		{"multibyte counted in characters", strings.Repeat("₹", 3000), 5000, false},
		{"no threshold", strings.Repeat("a", 9000), 0, false},
		{"stray close tag", "</table><table></table>", 5000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsComplexHTML(tt.html, tt.threshold))
		})
	}
}
