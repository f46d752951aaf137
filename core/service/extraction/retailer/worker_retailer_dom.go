package retailer

import (
	"strings"

	"order_worker/core/domain"
	"order_worker/core/service/normalize"
	"order_worker/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// visibleText prefers the rendered HTML text and falls back to the plain
// text body.
func visibleText(doc *goquery.Document, email *domain.EmailContent) string {
	if doc != nil {
		if t := htmlutil.VisibleText(doc); t != "" {
			return t
		}
	}
	return normalize.Text(email.TextBody)
}

// firstImage returns the src of the first img in scope.
func firstImage(scope *goquery.Selection) string {
	return htmlutil.Attr(scope, "img", "src")
}

// firstLink returns the href of the first anchor in scope.
func firstLink(scope *goquery.Selection) string {
	return htmlutil.Attr(scope, "a", "href")
}

// detailRows calls fn with the lower-cased label and value of every leaf
// table row under scope that has at least two cells.
func detailRows(scope *goquery.Selection, fn func(label, value string)) {
	scope.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("table").Length() > 0 {
			return
		}
		cells := tr.ChildrenFiltered("td, th")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(htmlutil.Text(cells.Eq(0)))
		value := htmlutil.Text(cells.Eq(1))
		if label == "" || value == "" {
			return
		}
		fn(label, value)
	})
}

// leafText calls fn for every element under scope with no element children.
func leafText(scope *goquery.Selection, fn func(sel *goquery.Selection, text string)) {
	scope.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return
		}
		if t := htmlutil.Text(sel); t != "" {
			fn(sel, t)
		}
	})
}
