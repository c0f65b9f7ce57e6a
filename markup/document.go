package markup

import (
	"encoding/json"
	"html"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Document is the normalized result of one conversion. It holds no reference
// to the adapter that produced it.
type Document struct {
	body        string
	title       string
	stylesheet  string
	javascript  string
	diagnostics []Diagnostic
	artifacts   []string
}

// DocumentParts carries the fields an adapter assembles into a Document.
type DocumentParts struct {
	Body        string
	Title       string
	Stylesheet  string
	JavaScript  string
	Diagnostics []Diagnostic
	Artifacts   []string
}

// NewDocument builds an immutable Document from parts.
func NewDocument(parts DocumentParts) Document {
	return Document{
		body:        parts.Body,
		title:       normalizeTitle(parts.Title),
		stylesheet:  parts.Stylesheet,
		javascript:  parts.JavaScript,
		diagnostics: append([]Diagnostic(nil), parts.Diagnostics...),
		artifacts:   append([]string(nil), parts.Artifacts...),
	}
}

// Body returns the rendered fragment without page scaffolding.
func (d Document) Body() string { return d.body }

// Title returns the structural document title, or "".
func (d Document) Title() string { return d.title }

// Stylesheet returns CSS for the body's classes.
func (d Document) Stylesheet() string { return d.stylesheet }

// JavaScript returns script elements the body needs, or "" when the body uses
// no client-side rendered feature.
func (d Document) JavaScript() string { return d.javascript }

// Diagnostics returns every diagnostic reported during the conversion,
// including those suppressed from the body.
func (d Document) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), d.diagnostics...)
}

// Artifacts returns the files the conversion left on disk. Removing them is
// the caller's responsibility.
func (d Document) Artifacts() []string {
	return append([]string(nil), d.artifacts...)
}

// PageOptions controls HTML.
type PageOptions struct {
	// FallbackTitle is used when the document has no title.
	FallbackTitle string
	// CustomCSS is appended after the document stylesheet.
	CustomCSS string
	// OmitStylesheet drops the document stylesheet.
	OmitStylesheet bool
	// OmitJavaScript drops the document scripts.
	OmitJavaScript bool
}

// HTML renders d as a standalone page.
func (d Document) HTML(opts PageOptions) string {
	title := d.title
	if title == "" {
		title = opts.FallbackTitle
	}

	var sb strings.Builder
	sb.WriteString("<!doctype html>\n<html>\n<head>\n")
	sb.WriteString(`<meta http-equiv="content-type" content="text/html; charset=utf-8">`)
	sb.WriteString("\n")
	if title != "" {
		sb.WriteString("<title>")
		sb.WriteString(html.EscapeString(title))
		sb.WriteString("</title>\n")
	}
	css := d.stylesheet
	if opts.OmitStylesheet {
		css = ""
	}
	if opts.CustomCSS != "" {
		css = strings.TrimRight(css, "\n") + "\n" + opts.CustomCSS
	}
	if strings.TrimSpace(css) != "" {
		sb.WriteString("<style type=\"text/css\">\n")
		sb.WriteString(strings.TrimRight(css, "\n"))
		sb.WriteString("\n</style>\n")
	}
	if !opts.OmitJavaScript && d.javascript != "" {
		sb.WriteString(strings.TrimRight(d.javascript, "\n"))
		sb.WriteString("\n")
	}
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(d.body)
	if !strings.HasSuffix(d.body, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

type documentJSON struct {
	Body        string       `json:"body"`
	Title       string       `json:"title"`
	Stylesheet  string       `json:"stylesheet"`
	JavaScript  string       `json:"javascript"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Artifacts   []string     `json:"artifacts,omitempty"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON{
		Body:        d.body,
		Title:       d.title,
		Stylesheet:  d.stylesheet,
		JavaScript:  d.javascript,
		Diagnostics: d.diagnostics,
		Artifacts:   d.artifacts,
	})
}

func normalizeTitle(title string) string {
	return norm.NFC.String(strings.Join(strings.Fields(title), " "))
}
