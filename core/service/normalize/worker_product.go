package normalize

import (
	"strings"

	"order_worker/core/domain"
)

// Product canonicalizes p in place and stamps it with the request context.
// retailer and emailID always replace whatever the extraction stage set.
// It reports false when the product has no name and must be dropped.
func Product(p *domain.ExtractedProduct, retailer, emailID string) bool {
	p.Name = Text(p.Name)
	if p.Name == "" {
		return false
	}

	p.Brand = Text(p.Brand)
	p.Price = Price(p.Price)
	p.OriginalPrice = Price(p.OriginalPrice)
	p.Discount = Price(p.Discount)
	p.Size = Text(p.Size)
	p.Color = Text(p.Color)
	p.Category = Text(p.Category)
	p.OrderID = Text(p.OrderID)
	p.Reference = Text(p.Reference)
	p.ImageURL = ImageURL("", p.ImageURL)
	p.ProductLink = Link("", p.ProductLink)
	p.Quantity = PositiveQuantity(p.Quantity)

	p.Retailer = retailer
	p.EmailID = emailID
	p.NormalizedImageURL = ImageKey(p.ImageURL)
	return true
}

// Products normalizes every product and drops the nameless ones. The input
// slice is reused.
func Products(products []domain.ExtractedProduct, retailer, emailID string) []domain.ExtractedProduct {
	out := products[:0]
	for i := range products {
		p := products[i]
		if Product(&p, retailer, emailID) {
			out = append(out, p)
		}
	}
	return out
}

// RetailerKey lower-cases and trims a retailer hint for registry lookups.
func RetailerKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
