package retailer

import (
	"order_worker/core/domain"
	"order_worker/core/service/normalize"
	"order_worker/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// =============================================================================
// Myntra
// =============================================================================
//
// Myntra templates mark every product field with an id that embeds the field
// name (ItemProductName0, ItemProductBrandName0, ...). Products are grouped
// in productListContainer blocks; newer templates drop the container class
// and only the ids survive.

const myntraContainers = ".productListContainer, .productListContainerLastBeforeItem"

// NewMyntraParser creates the Myntra parser.
func NewMyntraParser() *Parser {
	return NewParser("Myntra", nil,
		DOMAttempt("containers", myntraFromContainers),
		DOMAttempt("item_ids", myntraFromItemIDs),
	)
}

func myntraFromContainers(doc *goquery.Document, _ *domain.EmailContent) []domain.ExtractedProduct {
	orderID := myntraOrderID(doc)

	var products []domain.ExtractedProduct
	doc.Find(myntraContainers).Each(func(_ int, container *goquery.Selection) {
		p := myntraProduct(container)
		if p.Name == "" {
			return
		}
		p.OrderID = orderID
		products = append(products, p)
	})
	return products
}

// myntraFromItemIDs walks up from each product-name node to the nearest
// table row that also holds the image.
func myntraFromItemIDs(doc *goquery.Document, _ *domain.EmailContent) []domain.ExtractedProduct {
	orderID := myntraOrderID(doc)

	var products []domain.ExtractedProduct
	seen := make(map[*html.Node]bool)
	doc.Find(`[id*="ItemProductName"]`).Each(func(_ int, name *goquery.Selection) {
		scope := name.ParentsFiltered("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Find("img").Length() > 0
		}).First()
		if scope.Length() == 0 {
			scope = name.Parent()
		}
		node := scope.Get(0)
		if seen[node] {
			return
		}
		seen[node] = true

		p := myntraProduct(scope)
		if p.Name == "" {
			p.Name = htmlutil.Text(name)
		}
		if p.Name == "" {
			return
		}
		p.OrderID = orderID
		products = append(products, p)
	})
	return products
}

func myntraProduct(scope *goquery.Selection) domain.ExtractedProduct {
	p := domain.ExtractedProduct{
		Name:        htmlutil.FirstText(scope, `[id*="ItemProductName"]`),
		Brand:       htmlutil.FirstText(scope, `[id*="ItemProductBrandName"]`),
		Size:        htmlutil.FirstText(scope, `[id*="ItemSize"]`),
		Price:       normalize.Price(htmlutil.FirstText(scope, `[id*="ItemPrice"]`, `[id*="ItemTotal"]`)),
		ImageURL:    firstImage(scope),
		ProductLink: firstLink(scope),
		Quantity:    1,
	}

	if q := htmlutil.FirstText(scope, `[id*="ItemQuantity"]`); q != "" {
		p.Quantity = normalize.Quantity(q)
	}

	// 브랜드가 없으면 판매자명으로 대체
	if p.Brand == "" {
		p.Brand = htmlutil.FirstText(scope, `[id*="ItemSellerName"]`)
	}
	return p
}

func myntraOrderID(doc *goquery.Document) string {
	return htmlutil.Text(doc.Find(`[id="OrderId"]`).First())
}
