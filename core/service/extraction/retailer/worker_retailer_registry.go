package retailer

import (
	"regexp"
	"sort"
	"strings"

	"order_worker/core/domain"
)

// =============================================================================
// Registry
// =============================================================================

// Registry maps lower-cased retailer keys to parsers. It is built once and
// never mutated, so one instance can be shared by every worker.
type Registry struct {
	parsers map[string]*Parser
	names   []string
}

// NewRegistry creates a registry from parsers. Later parsers win on key
// collisions.
func NewRegistry(parsers ...*Parser) *Registry {
	r := &Registry{parsers: make(map[string]*Parser)}
	for _, p := range parsers {
		if p == nil {
			continue
		}
		for _, k := range p.Keys() {
			r.parsers[k] = p
		}
		r.names = append(r.names, p.Name())
	}
	sort.Strings(r.names)
	return r
}

// NewDefaultRegistry creates a registry with all built-in retailer parsers.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		NewMyntraParser(),
		NewHMParser(),
		NewZaraParser(),
	)
}

// Lookup returns the parser registered for retailer, ignoring case and
// surrounding whitespace.
func (r *Registry) Lookup(retailer string) (*Parser, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.parsers[strings.ToLower(strings.TrimSpace(retailer))]
	return p, ok
}

// Supports reports whether a structural parser exists for retailer.
func (r *Registry) Supports(retailer string) bool {
	_, ok := r.Lookup(retailer)
	return ok
}

// Names returns the primary key of every registered parser, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// =============================================================================
// Retailer detection
// =============================================================================

type detectRule struct {
	retailer string
	sender   *regexp.Regexp // matched against From
	body     *regexp.Regexp // matched against lower-cased HTML/text
	subject  *regexp.Regexp // matched against lower-cased subject
}

var detectRules = []detectRule{
	{
		retailer: "myntra",
		sender:   regexp.MustCompile(`(?i)@(?:[a-z0-9-]+\.)*myntra\.com`),
		body:     regexp.MustCompile(`myntra`),
		subject:  regexp.MustCompile(`myntra`),
	},
	{
		retailer: "h&m",
		sender:   regexp.MustCompile(`(?i)@(?:[a-z0-9-]+\.)*hm\.com`),
		body:     regexp.MustCompile(`\bhm\.com\b`),
		subject:  regexp.MustCompile(`\bh&m\b|\bh & m\b|\bhm\b`),
	},
	{
		retailer: "zara",
		sender:   regexp.MustCompile(`(?i)@(?:[a-z0-9-]+\.)*zara\.com`),
		body:     regexp.MustCompile(`\bzara\.com\b`),
		subject:  regexp.MustCompile(`\bzara\b`),
	},
}

// Detect infers the retailer key of an email from its sender, body and
// subject. It returns "" when nothing matches.
func Detect(email *domain.EmailContent) string {
	if email == nil {
		return ""
	}
	for _, rule := range detectRules {
		if rule.sender.MatchString(email.From) {
			return rule.retailer
		}
	}

	content := strings.ToLower(email.HTMLBody)
	if content == "" {
		content = strings.ToLower(email.TextBody)
	}
	subject := strings.ToLower(email.Subject)
	for _, rule := range detectRules {
		if rule.body.MatchString(content) || rule.subject.MatchString(subject) {
			return rule.retailer
		}
	}
	return ""
}
