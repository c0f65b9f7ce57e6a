// Package markdown converts Markdown to HTML with goldmark.
//
// The adapter runs in process and is always available. Besides the
// configured goldmark extensions it understands $...$ math, Graphviz
// diagrams in fenced "dot" blocks or linked .dot files, a front matter
// title, and, when enabled, a single leading level one heading as title.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"

	"github.com/rgonek/markups/internal/command"
	"github.com/rgonek/markups/internal/diagram"
	"github.com/rgonek/markups/markup"
)

// KindName is the registry name of the Markdown kind.
const KindName = "markdown"

// Markdown specific settings keys.
const (
	SettingHighlight        = "highlight"
	SettingHighlightStyle   = "highlight_style"
	SettingTitleFromHeading = "title_from_heading"
	SettingUnsafeHTML       = "unsafe_html"
	SettingExtensions       = "extensions"
)

// DefaultExtensions is the extension list used when none is configured.
const DefaultExtensions = "gfm,footnote,definition"

// Kind is the Markdown capability descriptor backed by os/exec for diagrams.
var Kind = NewKind()

// Option configures the kind returned by NewKind.
type Option func(*kindConfig)

type kindConfig struct {
	exec command.Executor
}

// WithExecutor runs the diagram renderer through e.
func WithExecutor(e command.Executor) Option {
	return func(c *kindConfig) {
		c.exec = e
	}
}

// NewKind returns a Markdown kind descriptor.
func NewKind(opts ...Option) *markup.Kind {
	cfg := kindConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return markup.MustKind(markup.KindSpec{
		Name:                KindName,
		DisplayName:         "Markdown",
		Aliases:             []string{"md", "gfm", "commonmark"},
		Extensions:          []string{".md", ".markdown", ".mdown", ".mkd", ".mkdn"},
		HomePage:            "https://daringfireball.net/projects/markdown/",
		SyntaxDocumentation: "https://spec.commonmark.org/current/",
		Options:             options(),
		ThreadSafe:          true,
		New: func(settings markup.Settings) (markup.Adapter, error) {
			return newAdapter(settings, cfg)
		},
	})
}

func options() []markup.Option {
	opts := append(markup.MathOptions(), markup.DiagramOptions()...)
	return append(opts,
		markup.Option{Name: SettingHighlight, Type: markup.OptionBool, Default: true, Description: "highlight fenced code with CSS classes"},
		markup.Option{Name: SettingHighlightStyle, Type: markup.OptionString, Default: "github", Description: "chroma style for the highlighting stylesheet"},
		markup.Option{Name: SettingTitleFromHeading, Type: markup.OptionBool, Default: false, Description: "use a single leading level one heading as title"},
		markup.Option{Name: SettingUnsafeHTML, Type: markup.OptionBool, Default: false, Description: "pass raw HTML through"},
		markup.Option{Name: SettingExtensions, Type: markup.OptionString, Default: DefaultExtensions, Description: "comma separated goldmark extensions"},
	)
}

// Adapter converts Markdown. One Adapter may serve concurrent calls: all
// per-call state lives in the goldmark parser context.
type Adapter struct {
	settings         markup.Settings
	engine           goldmark.Markdown
	stylesheet       string
	math             bool
	mathJaxURL       string
	titleFromHeading bool
	diagrams         diagram.Config
}

func newAdapter(settings markup.Settings, cfg kindConfig) (*Adapter, error) {
	extensions, err := collectExtensions(settings.String(SettingExtensions))
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		settings:         settings,
		math:             settings.Bool(markup.SettingMath),
		mathJaxURL:       settings.String(markup.SettingMathJaxURL),
		titleFromHeading: settings.Bool(SettingTitleFromHeading),
		diagrams:         diagram.FromSettings(settings, cfg.exec),
	}

	highlight := settings.Bool(SettingHighlight)
	style := settings.String(SettingHighlightStyle)
	if highlight {
		extensions = append(extensions, highlighting.NewHighlighting(
			highlighting.WithStyle(style),
			highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
		))
	}
	if a.math {
		extensions = append(extensions, mathExtension{})
	}
	extensions = append(extensions, documentExtension{})

	a.stylesheet, err = stylesheet(highlight, style)
	if err != nil {
		return nil, err
	}

	var rendererOptions []renderer.Option
	if settings.Bool(SettingUnsafeHTML) {
		rendererOptions = append(rendererOptions, html.WithUnsafe())
	}

	a.engine = goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(rendererOptions...),
	)
	return a, nil
}

// Convert renders text. It never fails: problems are reported as
// diagnostics in the returned document.
func (a *Adapter) Convert(ctx context.Context, text string) markup.Document {
	sink := markup.NewSink(KindName, a.settings)
	defer sink.Close()

	c := &conversion{
		ctx:              ctx,
		sink:             sink,
		diagrams:         a.diagrams,
		titleFromHeading: a.titleFromHeading,
	}

	source := c.splitFrontMatter(text)
	body := c.leading.String()
	rendered, err := a.render(c, source)
	if err != nil {
		d := markup.Diagnostic{
			Severity: markup.SeveritySevere,
			Source:   a.diagrams.Source,
			Message:  err.Error(),
		}
		sink.Report(d)
		if sink.Reportable(d) {
			body += markup.RenderDiagnostic(d)
		}
	} else {
		body += rendered
	}

	javascript := ""
	if a.math && markup.HasMathMarkup(body) {
		javascript = markup.MathJaxScript(a.mathJaxURL)
	}

	return markup.NewDocument(markup.DocumentParts{
		Body:        body,
		Title:       c.title,
		Stylesheet:  a.stylesheet,
		JavaScript:  javascript,
		Diagnostics: sink.Diagnostics(),
		Artifacts:   c.artifacts,
	})
}

func (a *Adapter) render(c *conversion, source string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("markdown conversion failed: %v", r)
		}
	}()

	pc := parser.NewContext()
	pc.Set(conversionKey, c)

	var buf bytes.Buffer
	if err := a.engine.Convert([]byte(source), &buf, parser.WithContext(pc)); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	return buf.String(), nil
}

// conversion is the state of one Convert call.
type conversion struct {
	ctx              context.Context
	sink             *markup.Sink
	diagrams         diagram.Config
	titleFromHeading bool

	title     string
	lineShift int
	leading   strings.Builder
	artifacts []string
}

var conversionKey = parser.NewContextKey()

func conversionFrom(pc parser.Context) *conversion {
	c, _ := pc.Get(conversionKey).(*conversion)
	return c
}

// line maps a byte offset of the goldmark source to a line of the original
// text, front matter included.
func (c *conversion) line(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte("\n")) + 1 + c.lineShift
}
