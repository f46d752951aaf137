package retailer

import (
	"net/url"
	"regexp"
	"strings"

	"order_worker/core/domain"
	"order_worker/core/service/normalize"
	"order_worker/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// =============================================================================
// H&M
// =============================================================================
//
// Two template generations are handled:
//   - article rows (tr.pl-articles-table-row) with inline-styled font nodes
//   - forwarded mails where each product block is wrapped in a
//     parcel-api.delivery.hm.com click-tracking anchor

const (
	hmBrand = "H&M"

	hmRowSelector      = "tr.pl-articles-table-row"
	hmNameSelector     = `font[style*="color:#222222"][style*="text-decoration:none"]`
	hmNameLoose        = `font[style*="color:#222222"]`
	hmPriceSelector    = `font[style*="color: #CE2129"]`
	hmOriginalSelector = `s font[style*="font-weight: 600"]`
	hmImageSelector    = `img[src*="assets.hm.com/articles/"]`
	hmLinkSelector     = `a[href*="www2.hm.com/en_in/productpage."]`
	hmRedirectSelector = `a[href*="parcel-api.delivery.hm.com/click"]`
)

var (
	hmOrderIDRe     = regexp.MustCompile(`(?i)\border\s*(?:number|no\.?|#)?\s*:?\s*([A-Za-z0-9_-]*\d[A-Za-z0-9_-]*)`)
	hmAmountRe      = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	hmToParamRe     = regexp.MustCompile(`(?i)[?&]to=([^&]+)`)
	hmProductPageRe = regexp.MustCompile(`(?i)https?://[^\s"']*productpage\.[^\s"']+`)
	hmCurrencyRe    = regexp.MustCompile(`(?i)₹|\brs\.?|\binr\b`)
	hmPercentRe     = regexp.MustCompile(`\d+(?:\.\d+)?\s*%`)
)

// NewHMParser creates the H&M parser.
func NewHMParser() *Parser {
	return NewParser(hmBrand, []string{"hm", "h & m", "hennes & mauritz"},
		DOMAttempt("article_rows", hmFromArticleRows),
		DOMAttempt("forwarded_anchors", hmFromForwardedAnchors),
	)
}

// hmDetails holds the label/value pairs of a product details table.
type hmDetails struct {
	artNo    string
	color    string
	size     string
	quantity string
}

func readHMDetails(scope *goquery.Selection) hmDetails {
	var d hmDetails
	detailRows(scope, func(label, value string) {
		switch {
		case strings.Contains(label, "art. no"):
			d.artNo = value
		case strings.Contains(label, "color"), strings.Contains(label, "colour"):
			d.color = value
		case strings.Contains(label, "size"):
			d.size = value
		case strings.Contains(label, "quantity"), strings.Contains(label, "qty"):
			d.quantity = value
		}
	})
	return d
}

// hmPrice returns the first amount in s prefixed with the rupee sign.
func hmPrice(s string) string {
	m := hmAmountRe.FindString(s)
	if m == "" {
		return ""
	}
	return normalize.RupeeSymbol + m
}

func hmOrderID(doc *goquery.Document, email *domain.EmailContent) string {
	if m := hmOrderIDRe.FindStringSubmatch(email.Subject); m != nil {
		return m[1]
	}
	if m := hmOrderIDRe.FindStringSubmatch(htmlutil.VisibleText(doc)); m != nil {
		return m[1]
	}
	return ""
}

// ----------------------------------------------------------------------------
// Primary: article rows
// ----------------------------------------------------------------------------

func hmFromArticleRows(doc *goquery.Document, email *domain.EmailContent) []domain.ExtractedProduct {
	rows := doc.Find(hmRowSelector)
	if rows.Length() == 0 {
		return nil
	}
	orderID := hmOrderID(doc, email)

	var products []domain.ExtractedProduct
	rows.Each(func(_ int, row *goquery.Selection) {
		name := htmlutil.Text(row.Find(hmNameSelector).First())
		if name == "" {
			return
		}

		details := readHMDetails(row)
		p := domain.ExtractedProduct{
			Name:          name,
			Brand:         hmBrand,
			Price:         hmPrice(htmlutil.Text(row.Find(hmPriceSelector).First())),
			OriginalPrice: hmPrice(htmlutil.Text(row.Find(hmOriginalSelector).First())),
			Size:          details.size,
			Color:         details.color,
			ImageURL:      htmlutil.Attr(row, hmImageSelector, "src"),
			ProductLink:   htmlutil.Attr(row, hmLinkSelector, "href"),
			Quantity:      normalize.Quantity(details.quantity),
			OrderID:       orderID,
			Reference:     details.artNo,
		}

		if d, ok := normalize.Discount(p.Price, p.OriginalPrice); ok {
			p.Discount = d
		} else {
			p.Discount = hmDiscountElement(row)
		}
		products = append(products, p)
	})
	return products
}

// hmDiscountElement looks for an explicit "discount" label in the row. The
// value is either in the same text node or in the next cell.
func hmDiscountElement(row *goquery.Selection) string {
	var out string
	detailRows(row, func(label, value string) {
		if out == "" && strings.Contains(label, "discount") {
			out = hmDiscountValue(value)
		}
	})
	if out != "" {
		return out
	}

	leafText(row, func(sel *goquery.Selection, text string) {
		if out != "" {
			return
		}
		i := strings.Index(strings.ToLower(text), "discount")
		if i < 0 {
			return
		}
		if out = hmDiscountValue(text[i+len("discount"):]); out == "" {
			out = hmDiscountValue(htmlutil.Text(sel.Closest("td, th").Next()))
		}
	})
	return out
}

// hmDiscountValue keeps percentages as "20%" and formats amounts as prices.
func hmDiscountValue(s string) string {
	if m := hmPercentRe.FindString(s); m != "" {
		return strings.ReplaceAll(m, " ", "")
	}
	return normalize.Price(hmPrice(s))
}

// ----------------------------------------------------------------------------
// Secondary: forwarded mail with click-tracking anchors
// ----------------------------------------------------------------------------

func hmFromForwardedAnchors(doc *goquery.Document, email *domain.EmailContent) []domain.ExtractedProduct {
	anchors := doc.Find(hmRedirectSelector)
	if anchors.Length() == 0 {
		return nil
	}
	orderID := hmOrderID(doc, email)

	var products []domain.ExtractedProduct
	seen := make(map[string]bool)
	anchors.Each(func(_ int, a *goquery.Selection) {
		if !hmLooksLikeProduct(a) {
			return
		}

		name := htmlutil.Text(a.Find(hmNameSelector).First())
		if name == "" {
			name = htmlutil.Text(a.Find(hmNameLoose).First())
		}
		if name == "" {
			return
		}

		href, _ := a.Attr("href")
		link := DecodeHMRedirect(href)
		details := readHMDetails(a)

		key := details.artNo
		if key == "" {
			key = link
		}
		if key == "" {
			key = name
		}
		if seen[key] {
			return
		}
		seen[key] = true

		var image string
		if tr := a.Closest("tr"); tr.Length() > 0 {
			image = htmlutil.Attr(tr, hmImageSelector, "src")
		}
		if image == "" {
			image = htmlutil.Attr(a, hmImageSelector, "src")
		}

		products = append(products, domain.ExtractedProduct{
			Name:        name,
			Brand:       hmBrand,
			Price:       hmAnchorPrice(a),
			Size:        details.size,
			Color:       details.color,
			ImageURL:    image,
			ProductLink: link,
			Quantity:    normalize.Quantity(details.quantity),
			OrderID:     orderID,
			Reference:   details.artNo,
		})
	})
	return products
}

// hmLooksLikeProduct requires a nested details table mentioning art. no,
// color and size. Tracking anchors also wrap logos, footers and banners.
func hmLooksLikeProduct(a *goquery.Selection) bool {
	tables := a.Find("table")
	if tables.Length() == 0 {
		return false
	}
	text := strings.ToLower(htmlutil.Text(tables))
	hits := 0
	if strings.Contains(text, "art. no") {
		hits++
	}
	if strings.Contains(text, "color") || strings.Contains(text, "colour") {
		hits++
	}
	if strings.Contains(text, "size") {
		hits++
	}
	return hits >= 3
}

func hmAnchorPrice(a *goquery.Selection) string {
	var price string
	a.Find("font").EachWithBreak(func(_ int, f *goquery.Selection) bool {
		t := htmlutil.Text(f)
		if !hmCurrencyRe.MatchString(t) {
			return true
		}
		price = hmPrice(t)
		return price == ""
	})
	return price
}

// DecodeHMRedirect unwraps a parcel-api click URL into the productpage URL it
// points at. The target travels URL-encoded in the "to" parameter. When no
// productpage URL can be recovered the original href is returned.
func DecodeHMRedirect(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	decoded, err := url.PathUnescape(href)
	if err != nil {
		return href
	}

	if m := hmToParamRe.FindStringSubmatch(decoded); m != nil {
		target := m[1]
		if t, err := url.PathUnescape(target); err == nil {
			target = t
		}
		if u := hmProductPageRe.FindString(target); u != "" {
			return u
		}
	}
	if u := hmProductPageRe.FindString(decoded); u != "" {
		return u
	}
	return href
}
