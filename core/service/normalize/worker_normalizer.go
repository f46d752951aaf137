// Package normalize canonicalizes free text, prices and URLs pulled out of
// retailer emails so every extraction stage yields the same shape.
package normalize

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RupeeSymbol is the currency prefix used for Indian retailers.
const RupeeSymbol = "₹"

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	digitRunRe    = regexp.MustCompile(`\d+`)
	amountRe      = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	rupeeWordRe   = regexp.MustCompile(`(?i)^\s*(?:rs\.?|inr)\s*`)
	sizeSegmentRe = regexp.MustCompile(`(?i)/(thumb|small|medium|large|xl|xxl)/`)
	dimensionRe   = regexp.MustCompile(`_\d+x\d+\.`)
)

// trackingParams are dropped from links regardless of value.
var trackingParams = map[string]bool{
	"gclid":   true,
	"fbclid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"_hsenc":  true,
	"_hsmi":   true,
	"msclkid": true,
}

// =============================================================================
// Text
// =============================================================================

// Text collapses every whitespace run (including NBSP) to one space and trims.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// FirstDigits returns the first run of digits in s, or "".
func FirstDigits(s string) string {
	return digitRunRe.FindString(s)
}

// Quantity parses the first digit run of s as a positive integer.
// Anything else yields 1.
func Quantity(s string) int {
	n, err := strconv.Atoi(FirstDigits(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// PositiveQuantity coerces q to at least 1.
func PositiveQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

// =============================================================================
// Prices
// =============================================================================

// Price canonicalizes a display price. Rs/INR prefixes become ₹ and the gap
// between symbol and amount is removed. Text without digits yields "".
func Price(s string) string {
	s = Text(s)
	if s == "" || !strings.ContainsAny(s, "0123456789") {
		return ""
	}
	if loc := rupeeWordRe.FindStringIndex(s); loc != nil {
		s = RupeeSymbol + s[loc[1]:]
	}
	if strings.HasPrefix(s, RupeeSymbol) {
		rest := strings.TrimSpace(strings.TrimPrefix(s, RupeeSymbol))
		return RupeeSymbol + rest
	}
	return s
}

// ParseAmount extracts the first numeric amount in s, ignoring thousands
// separators.
func ParseAmount(s string) (decimal.Decimal, bool) {
	m := amountRe.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatAmount renders d with symbol. Whole amounts carry no decimals.
func FormatAmount(symbol string, d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return symbol + d.StringFixed(0)
	}
	return symbol + d.StringFixed(2)
}

// Discount computes original - price when both parse and the difference is
// positive. The symbol of price is reused; it defaults to ₹.
func Discount(price, original string) (string, bool) {
	p, ok := ParseAmount(price)
	if !ok {
		return "", false
	}
	o, ok := ParseAmount(original)
	if !ok {
		return "", false
	}
	diff := o.Sub(p)
	if !diff.IsPositive() {
		return "", false
	}
	return FormatAmount(currencySymbol(price), diff), true
}

func currencySymbol(price string) string {
	price = strings.TrimSpace(price)
	if i := strings.IndexFunc(price, func(r rune) bool { return r >= '0' && r <= '9' }); i > 0 {
		if sym := strings.TrimSpace(price[:i]); sym != "" && !rupeeWordRe.MatchString(sym) {
			return sym
		}
	}
	return RupeeSymbol
}

// =============================================================================
// URLs
// =============================================================================

// AbsoluteURL resolves ref against base. Protocol-relative references become
// https. Unparseable input is returned trimmed.
func AbsoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() || base == "" {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return r.String()
	}
	return b.ResolveReference(r).String()
}

// StripTracking removes utm_* and click-id parameters and the fragment.
func StripTracking(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	if u.RawQuery == "" {
		return u.String()
	}
	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Link canonicalizes a product link.
func Link(base, raw string) string {
	return StripTracking(AbsoluteURL(base, raw))
}

// ImageURL canonicalizes a display image URL.
func ImageURL(base, raw string) string {
	if strings.HasPrefix(strings.TrimSpace(raw), "data:") {
		return ""
	}
	return StripTracking(AbsoluteURL(base, raw))
}

// ImageKey derives the comparison form of an image URL: https scheme, no
// query or fragment, lower-cased host and CDN size variants collapsed.
func ImageKey(raw string) string {
	raw = AbsoluteURL("", raw)
	if raw == "" {
		return ""
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		u.Host = strings.ToLower(u.Host)
		if u.Scheme == "http" {
			u.Scheme = "https"
		}
		raw = u.String()
	}
	raw = sizeSegmentRe.ReplaceAllString(raw, "/")
	return dimensionRe.ReplaceAllString(raw, ".")
}
