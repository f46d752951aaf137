package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"order_worker/core/domain"
	"order_worker/core/port/out"
	"order_worker/core/service/normalize"
	"order_worker/pkg/apperr"
	"order_worker/pkg/htmlutil"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// Semantic extractor
// =============================================================================

const (
	DefaultTextBudget     = 8000
	DefaultMaxTokens      = 4000
	DefaultTemperature    = 0.1
	truncationMarker      = "...(truncated)"
	semanticCacheKeyScope = "semantic:v1"
)

// SemanticConfig tunes the language model call.
type SemanticConfig struct {
	TextBudget  int // max runes of user content sent to the model
	MaxTokens   int
	Temperature float32
	CacheTTL    time.Duration // 0 disables caching
}

// DefaultSemanticConfig returns the production defaults.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		TextBudget:  DefaultTextBudget,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		CacheTTL:    6 * time.Hour,
	}
}

// SemanticExtractor asks a language model to read the visible text of an
// email and return its products. It never retries; callers decide that.
type SemanticExtractor struct {
	llm    out.LanguageModelClient
	cache  out.ExtractionCache
	flight singleflight.Group
	cfg    SemanticConfig
	log    zerolog.Logger
}

// NewSemanticExtractor creates the extractor. cache may be nil.
func NewSemanticExtractor(llm out.LanguageModelClient, cache out.ExtractionCache, cfg SemanticConfig, log zerolog.Logger) *SemanticExtractor {
	if cfg.TextBudget <= 0 {
		cfg.TextBudget = DefaultTextBudget
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &SemanticExtractor{
		llm:   llm,
		cache: cache,
		cfg:   cfg,
		log:   log.With().Str("component", "semantic_extractor").Logger(),
	}
}

// Extract returns the products the model found. Malformed output is an error.
func (s *SemanticExtractor) Extract(ctx context.Context, email *domain.EmailContent, retailer string) ([]domain.ExtractedProduct, error) {
	if s.llm == nil {
		return nil, apperr.ConfigError("language model client not configured")
	}

	systemPrompt := buildSystemPrompt(retailer)
	userContent := BuildUserContent(email, s.cfg.TextBudget)
	key := cacheKey(retailer, userContent)

	v, err, shared := s.flight.Do(key, func() (interface{}, error) {
		if products, ok := s.cached(ctx, key); ok {
			return products, nil
		}

		raw, err := s.llm.Complete(ctx, systemPrompt, userContent, out.CompletionOptions{
			Temperature: s.cfg.Temperature,
			MaxTokens:   s.cfg.MaxTokens,
			JSONMode:    true,
		})
		if err != nil {
			return nil, err
		}

		products, err := ParseProductsResponse(raw, retailer)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug().Str("email_id", email.ID).Msg("semantic request collapsed")
	}

	// 공유 결과를 호출자별로 복사
	products := v.([]domain.ExtractedProduct)
	outProducts := make([]domain.ExtractedProduct, len(products))
	copy(outProducts, products)
	return outProducts, nil
}

func (s *SemanticExtractor) cached(ctx context.Context, key string) ([]domain.ExtractedProduct, bool) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return nil, false
	}
	products, ok, err := s.cache.GetProducts(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("extraction cache read failed")
		return nil, false
	}
	return products, ok
}

func (s *SemanticExtractor) store(ctx context.Context, key string, products []domain.ExtractedProduct) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	if err := s.cache.SetProducts(ctx, key, products, s.cfg.CacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("extraction cache write failed")
	}
}

func cacheKey(retailer, content string) string {
	sum := sha256.Sum256([]byte(semanticCacheKeyScope + "\x00" + strings.ToLower(retailer) + "\x00" + content))
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// Prompt
// =============================================================================

const hmPromptHint = "H&M lists purchased products under a \"Your order\" or \"Items\" section. Ignore products outside it. The Art. no. value is not part of the name."

// retailerHints are extra rules for retailers whose templates confuse the
// model in known ways. Keys are lower-cased retailer names and aliases.
var retailerHints = map[string]string{
	"myntra": "Myntra sells many brands. Take the brand from the product title (usually its first word), never \"Myntra\".",
	"h&m":    hmPromptHint,
	"hm":     hmPromptHint,
	"zara":   "Zara product names are upper case and the brand is \"Zara\". A line like \"1 unit / ₹ 2,990.00\" is quantity and price, not a size.",
}

func buildSystemPrompt(retailer string) string {
	brand := strings.TrimSpace(retailer)
	if brand == "" {
		brand = "the retailer"
	}
	prompt := fmt.Sprintf(`You are an expert at extracting clothing product information from order confirmation emails.

Your task is to analyze the email content and extract every purchased product with its details.

For each product found, extract:
- name: The complete product name
- brand: The brand name (if not specified, use "%s")
- price: The current price with currency symbol
- originalPrice: The price before discount (if available)
- discount: The discount amount or percentage (if available)
- size: The product size (if available)
- color: The product color (if available)
- imageUrl: The product image URL (if available)
- productLink: The product page URL (if available)
- quantity: The quantity ordered (default 1)
- orderId: The order number (if available)

Rules:
1. Only extract products that were purchased. Skip recommendations, shipping lines and totals.
2. If a field is not available, use an empty string.
3. Preserve the exact text of names and prices.
4. If no products are found, return an empty products array.

Respond with a single JSON object of this exact shape and nothing else:
{"products": [{"name": "", "brand": "", "price": "", "originalPrice": "", "discount": "", "size": "", "color": "", "imageUrl": "", "productLink": "", "quantity": 1, "orderId": ""}]}`, brand)

	if hint, ok := retailerHints[normalize.RetailerKey(retailer)]; ok {
		prompt += "\n\nRetailer notes: " + hint
	}
	return prompt
}

// BuildUserContent renders the subject and visible text of an email,
// truncated to budget runes with a marker.
func BuildUserContent(email *domain.EmailContent, budget int) string {
	text := ""
	if email.HasHTML() {
		if doc, err := htmlutil.Parse(email.HTMLBody); err == nil {
			text = htmlutil.VisibleText(doc)
		}
	}
	if text == "" {
		text = normalize.Text(email.TextBody)
	}

	content := "Subject: " + normalize.Text(email.Subject) + "\n\nEmail Content:\n" + text
	if budget > 0 {
		if r := []rune(content); len(r) > budget {
			content = string(r[:budget]) + truncationMarker
		}
	}
	return content
}

// =============================================================================
// Response validation
// =============================================================================

// ParseProductsResponse validates a model response field by field. The
// top level must be an object with a products array; anything else is a
// MalformedResponse. Items that are not objects are skipped.
func ParseProductsResponse(raw, retailer string) ([]domain.ExtractedProduct, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var envelope map[string]any
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, apperr.MalformedResponse("not a json object", err)
	}
	items, ok := envelope["products"].([]any)
	if !ok {
		return nil, apperr.MalformedResponse("missing products array", nil)
	}

	products := make([]domain.ExtractedProduct, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		p := domain.ExtractedProduct{
			Name:          stringField(m, "name", "productName"),
			Brand:         stringField(m, "brand"),
			Price:         stringField(m, "price"),
			OriginalPrice: stringField(m, "originalPrice"),
			Discount:      stringField(m, "discount"),
			Size:          stringField(m, "size"),
			Color:         stringField(m, "color", "colour"),
			ImageURL:      stringField(m, "imageUrl", "image"),
			ProductLink:   stringField(m, "productLink", "link"),
			OrderID:       stringField(m, "orderId"),
			Quantity:      quantityField(m["quantity"]),
		}
		if p.Brand == "" {
			p.Brand = retailer
		}
		products = append(products, p)
	}
	return products, nil
}

// stringField returns the first key holding a usable scalar.
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func quantityField(v any) int {
	switch q := v.(type) {
	case float64:
		if q >= 1 && q < math.MaxInt32 {
			return int(q)
		}
	case string:
		return normalize.Quantity(q)
	}
	return 1
}
