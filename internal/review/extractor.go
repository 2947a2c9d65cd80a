package review

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSelector matches the collapsible review body on a listing page.
// Class tokens are matched individually, so their order in the attribute
// does not matter.
const DefaultSelector = `[class~="body-text"][class~="-prose"][class~="collapsible-text"]`

// Extractor pulls review text out of a rendered listing page.
type Extractor struct {
	selector string
}

// NewExtractor returns an Extractor using selector, or DefaultSelector when empty.
func NewExtractor(selector string) *Extractor {
	if selector == "" {
		selector = DefaultSelector
	}
	return &Extractor{selector: selector}
}

// Extract returns the visible text of every matching element in document
// order. A page without matches yields an empty slice.
func (e *Extractor) Extract(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}

	texts := []string{}
	doc.Find(e.selector).Each(func(i int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			texts = append(texts, visibleText(n))
		}
	})
	return texts, nil
}
