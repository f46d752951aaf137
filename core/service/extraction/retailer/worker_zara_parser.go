package retailer

import (
	"regexp"
	"strings"

	"order_worker/core/domain"
	"order_worker/core/service/normalize"
	"order_worker/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// =============================================================================
// Zara
// =============================================================================
//
// Zara renders products as cards, several per row. Name and size share one
// style signature; the first match is the name and the last is the size.

const (
	zaraBrand = "Zara"

	zaraRowSelector   = "tr.rd-product-row"
	zaraCardSelector  = "td.rd-product-col"
	zaraInnerSelector = "table.rd-product"
	zaraTitleSelector = `div[style*="text-transform: uppercase"][style*="font-size: 13px"]`
	zaraColorSelector = `div[style*="color: #666666"]`
	zaraPriceSelector = `div[style*="padding-top: 16px"]`
	zaraImageSelector = "img.rd-product-img"

	// names shorter than this are template labels, not products
	zaraMinNameLen = 4
)

var (
	zaraOrderIDRe    = regexp.MustCompile(`(?i)Order No\.\s*(\d+)`)
	zaraColorCodeRe  = regexp.MustCompile(`\s+\d+/\d+/\d+/\d+/\d+$`)
	zaraUnitPriceRe  = regexp.MustCompile(`(\d+)\s+units?\s*/\s*₹\s*([\d,]+\.?\d*)`)
	zaraSilhouetteRe = regexp.MustCompile(`(?i)\b(?:STRAIGHT|CURVED|FLARED|SKINNY|WIDE|NARROW|CROPPED|LONG|SHORT)`)
	zaraTextNameRe   = regexp.MustCompile(`^([A-Z][A-Z\s\-]+)`)
	zaraTextPriceRe  = regexp.MustCompile(`₹\s*([\d,]+(?:\.\d+)?)`)
	zaraTextUnitsRe  = regexp.MustCompile(`(?i)\b(\d+)\s+units?\b\s*/?`)
	zaraTextSizeRe   = regexp.MustCompile(`\b(XXS|XS|S|M|L|XL|XXL|XXXL|EU\s?\d{2}|\d{2})\b`)
	zaraTextColorRe  = regexp.MustCompile(`(?i)\b(Black|White|Blue|Red|Green|Yellow|Pink|Purple|Brown|Grey|Gray|Beige|Navy|Olive|Orange|Coral|Teal|Maroon|Burgundy|Cream|Ivory|Tan|Khaki|Charcoal|Silver|Gold|Bronze|Ecru)\b`)
)

// NewZaraParser creates the Zara parser.
func NewZaraParser() *Parser {
	return NewParser(zaraBrand, nil,
		DOMAttempt("product_cards", zaraFromCards),
		TextAttempt("silhouette_sections", zaraFromText),
	)
}

func zaraOrderID(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	var id string
	doc.Find(".rd-section-title div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := zaraOrderIDRe.FindStringSubmatch(s.Text()); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

func zaraFromCards(doc *goquery.Document, _ *domain.EmailContent) []domain.ExtractedProduct {
	orderID := zaraOrderID(doc)

	var products []domain.ExtractedProduct
	doc.Find(zaraRowSelector).Each(func(_ int, row *goquery.Selection) {
		cards := row.Find(zaraCardSelector)
		if cards.Length() == 0 {
			cards = row.Find(zaraInnerSelector)
		}
		cards.Each(func(_ int, card *goquery.Selection) {
			scope := card
			if inner := card.Find(zaraInnerSelector).First(); inner.Length() > 0 {
				scope = inner
			}
			p, ok := zaraCard(scope)
			if !ok {
				return
			}
			p.OrderID = orderID
			products = append(products, p)
		})
	})
	return products
}

func zaraCard(card *goquery.Selection) (domain.ExtractedProduct, bool) {
	titles := card.Find(zaraTitleSelector)
	name := htmlutil.Text(titles.First())
	if len([]rune(name)) < zaraMinNameLen {
		return domain.ExtractedProduct{}, false
	}

	p := domain.ExtractedProduct{
		Name:        name,
		Brand:       zaraBrand,
		ImageURL:    htmlutil.Attr(card, zaraImageSelector, "src"),
		ProductLink: firstLink(card),
		Quantity:    1,
	}
	if titles.Length() >= 2 {
		p.Size = htmlutil.Text(titles.Last())
	}

	color := htmlutil.Text(card.Find(zaraColorSelector).First())
	p.Color = strings.TrimSpace(zaraColorCodeRe.ReplaceAllString(color, ""))

	priceText := htmlutil.Text(card.Find(zaraPriceSelector).First())
	if m := zaraUnitPriceRe.FindStringSubmatch(priceText); m != nil {
		p.Quantity = normalize.Quantity(m[1])
		p.Price = normalize.RupeeSymbol + strings.ReplaceAll(m[2], ",", "")
	}
	return p, true
}

// zaraFromText is the last resort for mangled templates: the visible text is
// cut into sections at silhouette keywords and each section is mined with
// regexes.
func zaraFromText(text string, email *domain.EmailContent) []domain.ExtractedProduct {
	orderID := ""
	if m := zaraOrderIDRe.FindStringSubmatch(text); m != nil {
		orderID = m[1]
	}

	var products []domain.ExtractedProduct
	for _, section := range splitAtSilhouettes(text) {
		section = strings.TrimSpace(section)
		if len(section) < 10 {
			continue
		}
		m := zaraTextNameRe.FindStringSubmatch(section)
		if m == nil {
			continue
		}
		name := normalize.Text(strings.TrimRight(m[1], " -"))
		if len([]rune(name)) < zaraMinNameLen {
			continue
		}

		rest := section[len(m[0]):]
		p := domain.ExtractedProduct{
			Name:     name,
			Brand:    zaraBrand,
			Quantity: 1,
			OrderID:  orderID,
		}
		// price and unit count are cut out so their digits are not read as a size
		if pm := zaraTextPriceRe.FindStringSubmatch(rest); pm != nil {
			p.Price = normalize.RupeeSymbol + pm[1]
			rest = strings.Replace(rest, pm[0], " ", 1)
		}
		if um := zaraTextUnitsRe.FindStringSubmatch(rest); um != nil {
			p.Quantity = normalize.Quantity(um[1])
			rest = strings.Replace(rest, um[0], " ", 1)
		}
		if sm := zaraTextSizeRe.FindStringSubmatch(rest); sm != nil {
			p.Size = sm[1]
		}
		if cm := zaraTextColorRe.FindStringSubmatch(section); cm != nil {
			p.Color = cm[1]
		}
		products = append(products, p)
	}
	return products
}

// splitAtSilhouettes cuts text before every silhouette keyword. The keyword
// stays at the start of its section.
func splitAtSilhouettes(text string) []string {
	idx := zaraSilhouetteRe.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		return []string{text}
	}
	sections := make([]string, 0, len(idx)+1)
	prev := 0
	for _, loc := range idx {
		if loc[0] > prev {
			sections = append(sections, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	return append(sections, text[prev:])
}
