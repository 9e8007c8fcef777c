package feeds

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Plain text passes through with whitespace collapsed.
func CleanHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	doc.Find("script, style, iframe, noscript").Remove()
	doc.Find("p, br, li, h1, h2, h3, h4, h5, h6, div, blockquote").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
