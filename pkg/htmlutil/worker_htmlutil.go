// Package htmlutil holds small goquery helpers shared by the extraction stages.
package htmlutil

import (
	"strings"

	"order_worker/core/service/normalize"

	"github.com/PuerkitoBio/goquery"
)

// skipText lists elements whose text is never visible.
var skipText = map[string]bool{
	"script":   true,
	"style":    true,
	"head":     true,
	"noscript": true,
	"template": true,
	"title":    true,
}

// blockElements get a line break so adjacent cells do not run together.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "td": true, "th": true,
	"li": true, "table": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "section": true, "article": true,
}

// Parse builds a document from an HTML string.
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Text returns the whitespace-collapsed text of sel.
func Text(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return normalize.Text(sel.Text())
}

// FirstText returns the text of the first element matched by any of the
// selectors, tried in order, that has non-empty text.
func FirstText(scope *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if t := Text(scope.Find(s).First()); t != "" {
			return t
		}
	}
	return ""
}

// Attr returns the trimmed attribute of the first matched element.
func Attr(scope *goquery.Selection, selector, name string) string {
	v, _ := scope.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// VisibleText returns the document text with script, style and head content
// removed, block elements separated by newlines and whitespace collapsed.
func VisibleText(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	walk(doc.Selection, &b)
	return normalize.Text(b.String())
}

func walk(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		name := goquery.NodeName(node)
		switch {
		case name == "#text":
			b.WriteString(node.Text())
			b.WriteByte(' ')
		case name == "#comment":
		case skipText[name]:
		default:
			walk(node, b)
			if blockElements[name] {
				b.WriteByte('\n')
			}
		}
	})
}
