package elements

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// TestIDAttr is the attribute that marks an element as addressable.
	TestIDAttr = "data-test-id"
	// TestIDPrefix is the standard prefix every test id carries.
	TestIDPrefix = "e2e-"
)

// Extract returns every element in the document whose test id carries the
// standard prefix, in document order.
func Extract(r io.Reader) ([]TestElement, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse dom: %w", err)
	}

	var out []TestElement
	doc.Find("[" + TestIDAttr + "]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr(TestIDAttr)
		if !strings.HasPrefix(id, TestIDPrefix) {
			return
		}

		el := TestElement{
			ID:   id,
			Tag:  goquery.NodeName(sel),
			Text: collapse(sel.Text()),
		}
		el.Type, _ = sel.Attr("type")
		el.AriaLabel, _ = sel.Attr("aria-label")
		el.Placeholder, _ = sel.Attr("placeholder")

		if htmlID, ok := sel.Attr("id"); ok && htmlID != "" {
			label := doc.Find("label").FilterFunction(func(_ int, l *goquery.Selection) bool {
				f, _ := l.Attr("for")
				return f == htmlID
			}).First()
			el.Label = collapse(label.Text())
		}

		out = append(out, el)
	})
	return out, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
