// Package categorize assigns inventory categories to extracted products.
package categorize

import (
	"regexp"
	"strings"

	"order_worker/core/domain"
)

// =============================================================================
// Rules
// =============================================================================

type rule struct {
	name     string
	gender   gender
	patterns []*regexp.Regexp
}

func (r rule) match(text string) bool {
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// rules is compiled once from taxonomy; it is read-only afterwards and safe
// for concurrent use.
var rules = compileRules(taxonomy)

var (
	womenRe = regexp.MustCompile(`\b(?:women|womens|women's|woman|ladies|lady|female|feminine)\b`)
	menRe   = regexp.MustCompile(`\b(?:men|mens|men's|man|male|masculine)\b`)

	footwearRe = regexp.MustCompile(`\b(?:shoes?|sneakers?|footwear)\b`)
	jeansRe    = regexp.MustCompile(`\b(?:jeans?|denims?)\b`)
	shirtRe    = regexp.MustCompile(`\b(?:shirts?|tops?)\b`)
	formalRe   = regexp.MustCompile(`\b(?:formal|dress|business|office)\b`)
)

func compileRules(defs []categoryDef) []rule {
	out := make([]rule, 0, len(defs))
	for _, d := range defs {
		r := rule{name: d.name, gender: d.gender}
		for _, kw := range d.keywords {
			r.patterns = append(r.patterns, keywordPattern(kw))
		}
		out = append(out, r)
	}
	return out
}

// keywordPattern builds a whole-word regex for a keyword phrase. Words must
// appear in sequence separated by whitespace; the last word may carry a
// plural suffix.
func keywordPattern(keyword string) *regexp.Regexp {
	words := strings.Fields(strings.ToLower(keyword))
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b` + strings.Join(parts, `\s+`) + `(?:s|es)?\b`)
}

// =============================================================================
// Categorizer
// =============================================================================

// Categorizer is stateless; the zero value is ready to use.
type Categorizer struct{}

func New() *Categorizer {
	return &Categorizer{}
}

// Assign returns the category for p. A product that already carries a
// category keeps it.
func (c *Categorizer) Assign(p domain.ExtractedProduct) string {
	if cat := strings.TrimSpace(p.Category); cat != "" {
		return cat
	}
	return Label(searchText(p))
}

// Categorize sets p.Category when it is empty and returns the result.
func (c *Categorizer) Categorize(p *domain.ExtractedProduct) string {
	if p == nil {
		return domain.Uncategorized
	}
	p.Category = c.Assign(*p)
	return p.Category
}

// CategorizeAll categorizes products in place.
func (c *Categorizer) CategorizeAll(products []domain.ExtractedProduct) {
	for i := range products {
		c.Categorize(&products[i])
	}
}

// Group buckets products by their assigned category, keeping input order
// within each bucket.
func (c *Categorizer) Group(products []domain.ExtractedProduct) map[string][]domain.ExtractedProduct {
	out := make(map[string][]domain.ExtractedProduct)
	for _, p := range products {
		cat := c.Assign(p)
		p.Category = cat
		out[cat] = append(out[cat], p)
	}
	return out
}

// categories lists every label the categorizer can return, in priority
// order, followed by Uncategorized.
func categories() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.name)
	}
	return append(out, domain.Uncategorized)
}

func searchText(p domain.ExtractedProduct) string {
	return strings.ToLower(strings.Join([]string{p.Name, p.Brand, p.Color, p.Retailer}, " "))
}

// Label categorizes free text. text should already be lower-cased.
func Label(text string) string {
	g := detectGender(text)
	for _, r := range rules {
		if skipForGender(r.gender, g) {
			continue
		}
		if r.match(text) {
			return r.name
		}
	}
	return fallback(text, g)
}

// detectGender returns unisex when the text names neither or both genders.
func detectGender(text string) gender {
	w := womenRe.MatchString(text)
	m := menRe.MatchString(text)
	switch {
	case w && !m:
		return women
	case m && !w:
		return men
	default:
		return unisex
	}
}

func skipForGender(category, item gender) bool {
	if category == unisex || item == unisex {
		return false
	}
	return category != item
}

// fallback handles broad product families the keyword table did not place.
func fallback(text string, g gender) string {
	switch {
	case footwearRe.MatchString(text):
		if g == women {
			return "Womens Casual Shoes"
		}
		return "Mens Casual Shoes"
	case jeansRe.MatchString(text):
		if g == women {
			return "Womens Jeans"
		}
		return "Mens Jeans"
	case shirtRe.MatchString(text):
		if g == women {
			return "Womens Tops"
		}
		if formalRe.MatchString(text) {
			return "Formal Shirts"
		}
		return "Casual Shirts"
	}
	return domain.Uncategorized
}
