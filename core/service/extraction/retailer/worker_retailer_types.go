// Package retailer implements structural parsers for known retailer order
// email templates.
package retailer

import (
	"strings"

	"order_worker/core/domain"

	"github.com/PuerkitoBio/goquery"
)

// =============================================================================
// Attempts
// =============================================================================

// DOMFunc extracts products from a parsed document.
type DOMFunc func(doc *goquery.Document, email *domain.EmailContent) []domain.ExtractedProduct

// TextFunc extracts products from the visible text of an email. It runs even
// when the email has no HTML body.
type TextFunc func(text string, email *domain.EmailContent) []domain.ExtractedProduct

// Attempt is one structural heuristic. Exactly one of DOM or Text is set.
type Attempt struct {
	Name string
	DOM  DOMFunc
	Text TextFunc
}

// DOMAttempt builds a document-based attempt.
func DOMAttempt(name string, fn DOMFunc) Attempt {
	return Attempt{Name: name, DOM: fn}
}

// TextAttempt builds a text-based attempt.
func TextAttempt(name string, fn TextFunc) Attempt {
	return Attempt{Name: name, Text: fn}
}

// =============================================================================
// Parser
// =============================================================================

// Parser is a retailer-specific strategy: an ordered list of attempts where
// the first non-empty result wins. Parsers hold no mutable state.
type Parser struct {
	name     string
	display  string
	aliases  []string
	attempts []Attempt
}

// NewParser creates a parser keyed by name (case-insensitive) and aliases.
// name as given is the retailer's display name.
func NewParser(name string, aliases []string, attempts ...Attempt) *Parser {
	display := strings.TrimSpace(name)
	return &Parser{
		name:     strings.ToLower(display),
		display:  display,
		aliases:  lowerAll(aliases),
		attempts: attempts,
	}
}

// Name returns the registry key.
func (p *Parser) Name() string {
	return p.name
}

// DisplayName is the retailer name stamped on products.
func (p *Parser) DisplayName() string {
	return p.display
}

// Keys returns the name followed by every alias.
func (p *Parser) Keys() []string {
	return append([]string{p.name}, p.aliases...)
}

// Attempts returns the attempt names in priority order.
func (p *Parser) Attempts() []string {
	names := make([]string, len(p.attempts))
	for i, a := range p.attempts {
		names[i] = a.Name
	}
	return names
}

// Parse runs the attempts in order and returns the first non-empty result.
func (p *Parser) Parse(email *domain.EmailContent) ([]domain.ExtractedProduct, error) {
	products, _, err := p.ParseWithAttempt(email)
	return products, err
}

// ParseWithAttempt is Parse that also reports which attempt produced the
// result. The attempt name is empty when nothing matched.
func (p *Parser) ParseWithAttempt(email *domain.EmailContent) ([]domain.ExtractedProduct, string, error) {
	var doc *goquery.Document
	if email.HasHTML() {
		d, err := goquery.NewDocumentFromReader(strings.NewReader(email.HTMLBody))
		if err != nil {
			return nil, "", err
		}
		doc = d
	}

	var text string
	textReady := false

	for _, a := range p.attempts {
		var found []domain.ExtractedProduct
		switch {
		case a.DOM != nil:
			if doc == nil {
				continue
			}
			found = a.DOM(doc, email)
		case a.Text != nil:
			if !textReady {
				text = visibleText(doc, email)
				textReady = true
			}
			if text == "" {
				continue
			}
			found = a.Text(text, email)
		}

		found = keepNamed(found)
		if len(found) > 0 {
			return found, a.Name, nil
		}
	}
	return nil, "", nil
}

func keepNamed(products []domain.ExtractedProduct) []domain.ExtractedProduct {
	out := products[:0]
	for _, p := range products {
		if strings.TrimSpace(p.Name) != "" {
			out = append(out, p)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
