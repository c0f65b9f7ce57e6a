// Package htmldoc splits a standalone HTML page produced by an external
// converter into the parts a markup Document needs.
package htmldoc

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a parsed converter output page.
type Page struct {
	doc *goquery.Document
}

// Parse reads a full HTML page.
func Parse(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing converter output: %w", err)
	}
	return &Page{doc: doc}, nil
}

// Stylesheet concatenates the text of every <style> element in the page.
func (p *Page) Stylesheet() string {
	var parts []string
	p.doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if css := strings.TrimSpace(s.Text()); css != "" {
			parts = append(parts, css)
		}
	})
	return strings.Join(parts, "\n")
}

// Container returns the first element matching one of selectors, in
// priority order, falling back to <body>.
func (p *Page) Container(selectors ...string) *goquery.Selection {
	for _, selector := range selectors {
		if sel := p.doc.Find(selector); sel.Length() > 0 {
			return sel.First()
		}
	}
	return p.doc.Find("body").First()
}

// Find runs selector against the whole page.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// TakeText removes the first element matching selector inside scope and
// returns its text. It returns "" when nothing matches.
func TakeText(scope *goquery.Selection, selector string) string {
	sel := scope.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	text := strings.TrimSpace(sel.Text())
	sel.Remove()
	return text
}

// OuterHTML serializes sel including its own tag.
func OuterHTML(sel *goquery.Selection) (string, error) {
	if sel.Length() == 0 {
		return "", nil
	}
	out, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", fmt.Errorf("serializing converter output: %w", err)
	}
	return out, nil
}

// InnerHTML serializes the children of sel.
func InnerHTML(sel *goquery.Selection) (string, error) {
	if sel.Length() == 0 {
		return "", nil
	}
	out, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("serializing converter output: %w", err)
	}
	return out, nil
}

// Fragment serializes a container returned by Container: the element
// itself, or only its children when it is <body>.
func Fragment(sel *goquery.Selection) (string, error) {
	if goquery.NodeName(sel) == "body" {
		return InnerHTML(sel)
	}
	return OuterHTML(sel)
}

// ReplaceText rewrites text nodes equal to from inside the elements matched
// by selector. It returns the number of replacements.
func ReplaceText(scope *goquery.Selection, selector, from, to string) int {
	replaced := 0
	scope.Find(selector).Each(func(_ int, s *goquery.Selection) {
		s.Find("*").AddSelection(s).Contents().Each(func(_ int, c *goquery.Selection) {
			node := c.Get(0)
			if goquery.NodeName(c) == "#text" && strings.Contains(node.Data, from) {
				node.Data = strings.ReplaceAll(node.Data, from, to)
				replaced++
			}
		})
	})
	return replaced
}
