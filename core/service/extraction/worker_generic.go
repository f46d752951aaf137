package extraction

import (
	"strings"

	"order_worker/core/domain"
	"order_worker/core/service/normalize"
	"order_worker/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// =============================================================================
// Generic fallback parser
// =============================================================================

// containerSelectors are tried in order; the first one that yields a product
// wins.
var containerSelectors = []string{
	".product",
	".item",
	".order-item",
	`[class*="product"]`,
	`[class*="item"]`,
	"table tr",
	".product-list li",
	".product-container",
	".item-container",
}

// fieldSelectors are per-field cascades evaluated inside a container.
var fieldSelectors = struct {
	name, brand, price, originalPrice, discount, size, color, quantity []string
}{
	name:          []string{".product-name", ".item-name", ".product-title", ".item-title", ".name", ".title", `[class*="name"]`, `[class*="title"]`, "h1, h2, h3, h4"},
	brand:         []string{".brand", ".product-brand", `[class*="brand"]`, ".manufacturer", ".vendor"},
	price:         []string{".price", ".sale-price", ".current-price", ".final-price", `[class*="price"]`, ".amount", ".cost"},
	originalPrice: []string{".original-price", ".mrp", ".was-price", ".list-price", `[class*="original"]`, "s", "del", "strike"},
	discount:      []string{".discount", `[class*="discount"]`, ".savings", ".offer"},
	size:          []string{".size", ".product-size", `[class*="size"]`},
	color:         []string{".color", ".colour", `[class*="color"]`, `[class*="colour"]`},
	quantity:      []string{".quantity", ".qty", `[class*="quantity"]`, `[class*="qty"]`},
}

// maxFallbackNameLen caps names taken from raw element text.
const maxFallbackNameLen = 150

// GenericParser extracts products from arbitrary HTML using class-name
// conventions and, failing that, plain table layouts.
type GenericParser struct{}

func NewGenericParser() *GenericParser {
	return &GenericParser{}
}

// Parse returns nil for emails without HTML.
func (g *GenericParser) Parse(email *domain.EmailContent) ([]domain.ExtractedProduct, error) {
	if !email.HasHTML() {
		return nil, nil
	}
	doc, err := htmlutil.Parse(email.HTMLBody)
	if err != nil {
		return nil, err
	}

	for _, sel := range containerSelectors {
		elements := doc.Find(sel)
		if elements.Length() == 0 {
			continue
		}
		if products := fromContainers(elements); len(products) > 0 {
			return products, nil
		}
	}
	return fromTables(doc), nil
}

// fromContainers keeps an element when a name sub-selector matched or a
// price was found. Bare element text alone is not evidence of a product.
func fromContainers(elements *goquery.Selection) []domain.ExtractedProduct {
	var products []domain.ExtractedProduct
	elements.Each(func(_ int, el *goquery.Selection) {
		name := htmlutil.FirstText(el, fieldSelectors.name...)
		price := htmlutil.FirstText(el, fieldSelectors.price...)
		if name == "" && price == "" {
			return
		}
		if name == "" {
			name = firstLine(el.Text(), maxFallbackNameLen)
		}
		if name == "" {
			return
		}

		products = append(products, domain.ExtractedProduct{
			Name:          name,
			Brand:         htmlutil.FirstText(el, fieldSelectors.brand...),
			Price:         price,
			OriginalPrice: htmlutil.FirstText(el, fieldSelectors.originalPrice...),
			Discount:      htmlutil.FirstText(el, fieldSelectors.discount...),
			Size:          htmlutil.FirstText(el, fieldSelectors.size...),
			Color:         htmlutil.FirstText(el, fieldSelectors.color...),
			Quantity:      normalize.Quantity(htmlutil.FirstText(el, fieldSelectors.quantity...)),
			ImageURL:      htmlutil.Attr(el, "img", "src"),
			ProductLink:   htmlutil.Attr(el, "a", "href"),
		})
	})
	return products
}

// fromTables reads every table positionally: the first row is a header,
// then column 0 is the name, 1 the price, 2 the size and 3 the color.
// Rows holding nested tables are layout, not data.
func fromTables(doc *goquery.Document) []domain.ExtractedProduct {
	var products []domain.ExtractedProduct
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.ChildrenFiltered("tbody, thead, tfoot").ChildrenFiltered("tr").
			AddSelection(table.ChildrenFiltered("tr"))
		rows.Each(func(i int, row *goquery.Selection) {
			if i == 0 || row.Find("table").Length() > 0 {
				return
			}
			cells := row.ChildrenFiltered("td, th")
			if cells.Length() < 2 {
				return
			}
			name := htmlutil.Text(cells.Eq(0))
			if name == "" {
				return
			}
			p := domain.ExtractedProduct{
				Name:        name,
				Price:       htmlutil.Text(cells.Eq(1)),
				Quantity:    1,
				ImageURL:    htmlutil.Attr(row, "img", "src"),
				ProductLink: htmlutil.Attr(row, "a", "href"),
			}
			if cells.Length() > 2 {
				p.Size = htmlutil.Text(cells.Eq(2))
			}
			if cells.Length() > 3 {
				p.Color = htmlutil.Text(cells.Eq(3))
			}
			products = append(products, p)
		})
	})
	return products
}

func firstLine(s string, max int) string {
	for _, line := range strings.Split(s, "\n") {
		if line = normalize.Text(line); line != "" {
			if r := []rune(line); len(r) > max {
				line = string(r[:max])
			}
			return line
		}
	}
	return ""
}
