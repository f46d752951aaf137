// Package extraction turns order emails into normalized product records by
// chaining structural, semantic and generic strategies.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"order_worker/core/domain"
	"order_worker/core/service/extraction/retailer"
	"order_worker/core/service/normalize"
	"order_worker/pkg/apperr"
	"order_worker/pkg/metrics"
	"order_worker/pkg/resilience"

	"github.com/rs/zerolog"
)

// SemanticStage is the language-model strategy.
type SemanticStage interface {
	Extract(ctx context.Context, email *domain.EmailContent, retailer string) ([]domain.ExtractedProduct, error)
}

// FallbackStage is the retailer-agnostic last stage.
type FallbackStage interface {
	Parse(email *domain.EmailContent) ([]domain.ExtractedProduct, error)
}

// =============================================================================
// Config
// =============================================================================

const (
	DefaultComplexityThreshold = 5000
	DefaultSemanticTimeout     = 30 * time.Second
)

// OrchestratorConfig tunes the strategy chain.
type OrchestratorConfig struct {
	// ComplexityThreshold is the HTML length above which the semantic stage
	// runs even for retailers with a structural parser.
	ComplexityThreshold int
	// SemanticTimeout bounds each semantic call, independent of retries.
	SemanticTimeout time.Duration
	Retry           resilience.RetryOptions
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ComplexityThreshold: DefaultComplexityThreshold,
		SemanticTimeout:     DefaultSemanticTimeout,
		Retry:               resilience.DefaultRetryOptions(),
	}
}

// =============================================================================
// Orchestrator
// =============================================================================

// Extraction is the outcome of one email run.
type Extraction struct {
	EmailID  string
	Retailer string
	Products []domain.ExtractedProduct
	Stages   []domain.StageReport
}

// Failed reports whether every stage that ran ended in failure.
func (e *Extraction) Failed() bool {
	if len(e.Products) > 0 || len(e.Stages) == 0 {
		return false
	}
	for _, s := range e.Stages {
		if s.Outcome != domain.OutcomeFailure {
			return false
		}
	}
	return true
}

// LastError returns the error text of the last failed stage.
func (e *Extraction) LastError() string {
	for i := len(e.Stages) - 1; i >= 0; i-- {
		if e.Stages[i].Error != "" {
			return e.Stages[i].Error
		}
	}
	return ""
}

// Orchestrator runs the extraction chain. It holds no per-call state and is
// safe for concurrent use.
type Orchestrator struct {
	registry *retailer.Registry
	semantic SemanticStage
	generic  FallbackStage
	stats    *metrics.StageRegistry
	cfg      OrchestratorConfig
	log      zerolog.Logger
}

// NewOrchestrator wires the chain. semantic may be nil when no language
// model is configured; the stage is then skipped.
func NewOrchestrator(
	registry *retailer.Registry,
	semantic SemanticStage,
	generic FallbackStage,
	stats *metrics.StageRegistry,
	cfg OrchestratorConfig,
	log zerolog.Logger,
) *Orchestrator {
	if registry == nil {
		registry = retailer.NewDefaultRegistry()
	}
	if generic == nil {
		generic = NewGenericParser()
	}
	if cfg.ComplexityThreshold <= 0 {
		cfg.ComplexityThreshold = DefaultComplexityThreshold
	}
	if cfg.SemanticTimeout <= 0 {
		cfg.SemanticTimeout = DefaultSemanticTimeout
	}
	return &Orchestrator{
		registry: registry,
		semantic: semantic,
		generic:  generic,
		stats:    stats,
		cfg:      cfg,
		log:      log.With().Str("component", "extraction_orchestrator").Logger(),
	}
}

// Run implements in.ExtractionService.
func (o *Orchestrator) Run(ctx context.Context, email *domain.EmailContent, retailerHint string, strategy domain.Strategy) ([]domain.ExtractedProduct, error) {
	res, err := o.Extract(ctx, email, retailerHint, strategy)
	if err != nil {
		return nil, err
	}
	return res.Products, nil
}

// Extract runs the chain and reports every stage. Stage failures never
// surface as errors; only a missing email does.
func (o *Orchestrator) Extract(ctx context.Context, email *domain.EmailContent, retailerHint string, strategy domain.Strategy) (*Extraction, error) {
	if email == nil {
		return nil, apperr.BadRequest("email is required")
	}

	key := normalize.RetailerKey(retailerHint)
	stamp := strings.TrimSpace(retailerHint)
	if key == "" {
		key = retailer.Detect(email)
		stamp = key
		if p, ok := o.registry.Lookup(key); ok {
			stamp = p.DisplayName()
		}
	}

	res := &Extraction{
		EmailID:  email.ID,
		Retailer: stamp,
		Products: []domain.ExtractedProduct{},
	}

	if !email.HasBody() {
		o.log.Debug().
			Str("email_id", email.ID).
			Err(apperr.FatalInput(email.ID)).
			Msg("skipping extraction")
		return res, nil
	}

	parser, hasParser := o.registry.Lookup(key)

	switch domain.ParseStrategy(string(strategy)) {
	case domain.StrategyCustom:
		if hasParser {
			o.runStructural(res, email, parser)
		}
	case domain.StrategyAI:
		o.runSemantic(ctx, res, email, key)
	case domain.StrategyGeneric:
		o.runGeneric(res, email)
	default:
		if hasParser && o.runStructural(res, email, parser) {
			break
		}
		if o.shouldUseSemantic(email, key, hasParser) && o.runSemantic(ctx, res, email, key) {
			break
		}
		o.runGeneric(res, email)
	}

	if len(res.Products) == 0 {
		o.log.Debug().
			Str("email_id", email.ID).
			Str("retailer", stamp).
			Msg("no products found with any extraction strategy")
	}
	return res, nil
}

// shouldUseSemantic triggers the model for unknown retailers and for
// complex markup. A text-only email from an unrecognized sender is left to
// the generic stage.
func (o *Orchestrator) shouldUseSemantic(email *domain.EmailContent, key string, hasParser bool) bool {
	if o.semantic == nil {
		return false
	}
	if !hasParser {
		return key != "" || email.HasHTML()
	}
	return IsComplexHTML(email.HTMLBody, o.cfg.ComplexityThreshold)
}

// IsComplexHTML reports whether html is longer than threshold characters or
// nests a table inside another table.
func IsComplexHTML(html string, threshold int) bool {
	if threshold > 0 && len(html) > threshold && utf8.RuneCountInString(html) > threshold {
		return true
	}
	return hasNestedTable(html)
}

func hasNestedTable(html string) bool {
	lower := strings.ToLower(html)
	depth := 0
	for i := 0; i < len(lower); i++ {
		if lower[i] != '<' {
			continue
		}
		rest := lower[i:]
		switch {
		case strings.HasPrefix(rest, "<table"):
			depth++
			if depth > 1 {
				return true
			}
		case strings.HasPrefix(rest, "</table"):
			if depth > 0 {
				depth--
			}
		}
	}
	return false
}

// =============================================================================
// Stages
// =============================================================================

func (o *Orchestrator) runStructural(res *Extraction, email *domain.EmailContent, parser *retailer.Parser) bool {
	return o.runStage(res, email, domain.StageCustom, func() ([]domain.ExtractedProduct, error) {
		products, attempt, err := parser.ParseWithAttempt(email)
		if attempt != "" {
			o.log.Debug().
				Str("email_id", email.ID).
				Str("parser", parser.Name()).
				Str("attempt", attempt).
				Strs("attempts", parser.Attempts()).
				Msg("structural attempt matched")
		}
		return products, err
	})
}

func (o *Orchestrator) runSemantic(ctx context.Context, res *Extraction, email *domain.EmailContent, key string) bool {
	if o.semantic == nil {
		res.Stages = append(res.Stages, domain.StageReport{Stage: domain.StageAI, Outcome: domain.OutcomeSkipped})
		return false
	}

	brand := res.Retailer
	if brand == "" {
		brand = key
	}
	opts := o.cfg.Retry
	opts.OnRetry = func(err error, attempt int, delay time.Duration) {
		o.log.Warn().
			Err(err).
			Str("email_id", email.ID).
			Str("code", apperr.CodeUpstreamTransient).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("semantic extraction retrying")
	}

	return o.runStage(res, email, domain.StageAI, func() ([]domain.ExtractedProduct, error) {
		return resilience.WithRetry(ctx, func(ctx context.Context) ([]domain.ExtractedProduct, error) {
			callCtx, cancel := context.WithTimeout(ctx, o.cfg.SemanticTimeout)
			defer cancel()
			return o.semantic.Extract(callCtx, email, brand)
		}, opts)
	})
}

func (o *Orchestrator) runGeneric(res *Extraction, email *domain.EmailContent) bool {
	return o.runStage(res, email, domain.StageGeneric, func() ([]domain.ExtractedProduct, error) {
		return o.generic.Parse(email)
	})
}

// runStage executes fn with panic isolation, normalizes its output into res
// and reports whether the stage produced anything.
func (o *Orchestrator) runStage(res *Extraction, email *domain.EmailContent, stage string, fn func() ([]domain.ExtractedProduct, error)) bool {
	start := time.Now()
	products, err := safeCall(stage, fn)
	if err == nil {
		products = normalize.Products(products, res.Retailer, email.ID)
	}
	elapsed := time.Since(start)

	report := domain.StageReport{Stage: stage, Products: len(products), Duration: elapsed}
	ev := o.log.Debug()
	switch {
	case err != nil:
		report.Outcome = domain.OutcomeFailure
		report.Error = err.Error()
		report.Products = 0
		ev = o.log.Warn().Err(err).Str("code", apperr.CodeStrategyFailure)
	case len(products) == 0:
		report.Outcome = domain.OutcomeEmpty
	default:
		report.Outcome = domain.OutcomeSuccess
		ev = o.log.Info()
	}
	ev.Str("stage", stage).
		Str("email_id", email.ID).
		Str("retailer", res.Retailer).
		Str("outcome", string(report.Outcome)).
		Int("products", report.Products).
		Dur("duration", elapsed).
		Msg("extraction stage finished")

	o.stats.Observe(stage, string(report.Outcome), elapsed)
	res.Stages = append(res.Stages, report)

	if report.Outcome != domain.OutcomeSuccess {
		return false
	}
	res.Products = products
	return true
}

// safeCall turns a panicking stage into a StrategyFailure.
func safeCall(stage string, fn func() ([]domain.ExtractedProduct, error)) (products []domain.ExtractedProduct, err error) {
	defer func() {
		if r := recover(); r != nil {
			products = nil
			err = apperr.StrategyFailure(stage, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}
