package markup

import (
	"fmt"
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
)

// DefaultMathJaxURL is the MathJax loader referenced when math is present.
const DefaultMathJaxURL = "https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-chtml.js"

// MathJaxScript returns the loader snippet for url.
func MathJaxScript(url string) string {
	if strings.TrimSpace(url) == "" {
		url = DefaultMathJaxURL
	}
	return fmt.Sprintf(
		"<script type=\"text/javascript\">\nwindow.MathJax = {tex: {inlineMath: [['\\\\(', '\\\\)']], displayMath: [['\\\\[', '\\\\]']]}};\n</script>\n"+
			"<script type=\"text/javascript\" id=\"MathJax-script\" async src=%q></script>\n",
		html.EscapeString(url),
	)
}

// HasMathMarkup reports whether rendered HTML contains an element the
// converter marked as math: a "math" or "stemblock" class, or MathML.
func HasMathMarkup(body string) bool {
	z := nethtml.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return false
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "math" {
				return true
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) != "class" {
					continue
				}
				for _, class := range strings.Fields(string(val)) {
					if class == "math" || class == "stemblock" {
						return true
					}
				}
			}
		}
	}
}

// HasMathDelimiters reports whether the text content of rendered HTML holds
// MathJax delimiters emitted by a converter, e.g. \( ... \).
func HasMathDelimiters(body string) bool {
	z := nethtml.NewTokenizer(strings.NewReader(body))
	skip := 0
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return false
		case nethtml.StartTagToken:
			if name, _ := z.TagName(); isLiteralElement(string(name)) {
				skip++
			}
		case nethtml.EndTagToken:
			if name, _ := z.TagName(); isLiteralElement(string(name)) && skip > 0 {
				skip--
			}
		case nethtml.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if delimited(text, `\(`, `\)`) || delimited(text, `\[`, `\]`) {
				return true
			}
		}
	}
}

func isLiteralElement(name string) bool {
	return name == "pre" || name == "code" || name == "script" || name == "style"
}

func delimited(text, open, closing string) bool {
	start := strings.Index(text, open)
	return start >= 0 && strings.Contains(text[start+len(open):], closing)
}
