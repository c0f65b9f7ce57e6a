// Package asciidoc converts AsciiDoc to HTML by running asciidoctor.
//
// The document header becomes the title, the #content element becomes the
// body, and the embedded default stylesheet is kept. Asciidoctor logs
// problems on stderr; they are parsed into diagnostics and rendered after
// the body when the threshold allows.
package asciidoc

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rgonek/markups/internal/command"
	"github.com/rgonek/markups/internal/diagram"
	"github.com/rgonek/markups/internal/htmldoc"
	"github.com/rgonek/markups/markup"
)

// KindName is the registry name of the AsciiDoc kind.
const KindName = "asciidoc"

// AsciiDoc specific settings keys.
const (
	SettingAsciidoctorCommand = "asciidoctor_command"
	SettingDoctype            = "doctype"
)

// DefaultCommand is the asciidoctor program used when none is configured.
const DefaultCommand = "asciidoctor"

// Doctypes are the accepted values of the doctype setting.
var Doctypes = []string{"article", "book", "manpage", "inline"}

//go:embed baseline.css
var baselineCSS string

// Kind is the AsciiDoc capability descriptor backed by os/exec.
var Kind = NewKind()

// Option configures the kind returned by NewKind.
type Option func(*kindConfig)

type kindConfig struct {
	exec command.Executor
}

// WithExecutor runs asciidoctor through e.
func WithExecutor(e command.Executor) Option {
	return func(c *kindConfig) {
		c.exec = e
	}
}

// NewKind returns an AsciiDoc kind descriptor.
func NewKind(opts ...Option) *markup.Kind {
	cfg := &kindConfig{exec: command.Default}
	for _, opt := range opts {
		opt(cfg)
	}
	probe := sync.OnceValue(func() bool {
		_, err := cfg.exec.LookPath(DefaultCommand)
		return err == nil
	})

	return markup.MustKind(markup.KindSpec{
		Name:                KindName,
		DisplayName:         "AsciiDoc",
		Aliases:             []string{"adoc", "asciidoctor"},
		Extensions:          []string{".adoc", ".asciidoc", ".asc"},
		HomePage:            "https://asciidoctor.org/",
		SyntaxDocumentation: "https://docs.asciidoctor.org/asciidoc/latest/syntax-quick-reference/",
		Options: append(markup.MathOptions(),
			markup.Option{Name: SettingAsciidoctorCommand, Type: markup.OptionString, Default: DefaultCommand, Description: "asciidoctor executable"},
			markup.Option{Name: SettingDoctype, Type: markup.OptionString, Default: "article", Description: "asciidoctor doctype: " + strings.Join(Doctypes, ", ")},
		),
		ThreadSafe:     true,
		Probe:          probe,
		CommandSetting: SettingAsciidoctorCommand,
		New: func(settings markup.Settings) (markup.Adapter, error) {
			return newAdapter(settings, cfg)
		},
	})
}

// Adapter converts AsciiDoc. Each call runs its own asciidoctor process.
type Adapter struct {
	settings   markup.Settings
	exec       command.Executor
	binary     string
	doctype    string
	math       bool
	mathJaxURL string
	source     string
	dir        string
}

func newAdapter(settings markup.Settings, cfg *kindConfig) (*Adapter, error) {
	doctype := strings.ToLower(strings.TrimSpace(settings.String(SettingDoctype)))
	valid := false
	for _, d := range Doctypes {
		valid = valid || d == doctype
	}
	if !valid {
		return nil, &markup.ConfigError{Kind: KindName, Key: SettingDoctype, Err: markup.ErrInvalidSetting}
	}

	binary := strings.TrimSpace(settings.String(SettingAsciidoctorCommand))
	if binary == "" {
		binary = DefaultCommand
	}
	if binary != DefaultCommand {
		if _, err := cfg.exec.LookPath(binary); err != nil {
			return nil, &markup.ConfigError{Kind: KindName, Key: SettingAsciidoctorCommand, Err: fmt.Errorf("%w: %v", markup.ErrKindUnavailable, err)}
		}
	}
	return &Adapter{
		settings:   settings,
		exec:       cfg.exec,
		binary:     binary,
		doctype:    doctype,
		math:       settings.Bool(markup.SettingMath),
		mathJaxURL: settings.String(markup.SettingMathJaxURL),
		source:     diagram.SourceName(settings.BasePath),
		dir:        diagram.BaseDir(settings.BasePath),
	}, nil
}

// Args returns the asciidoctor command line. The source is read from stdin
// and the page written to stdout.
func (a *Adapter) Args() []string {
	args := []string{"-o", "-"}
	if a.math {
		args = append(args, "-a", "stem")
	}
	return append(args, "-a", "doctype="+a.doctype, "--failure-level=FATAL", "-")
}

// Convert renders text. Asciidoctor failures are reported in the returned
// document rather than returned.
func (a *Adapter) Convert(ctx context.Context, text string) markup.Document {
	sink := markup.NewSink(KindName, a.settings)
	defer sink.Close()

	var stdout, stderr bytes.Buffer
	invocation := command.Invocation{
		Name:   a.binary,
		Args:   a.Args(),
		Stdin:  strings.NewReader(text),
		Stdout: &stdout,
		Stderr: &stderr,
	}
	if info, err := os.Stat(a.dir); err == nil && info.IsDir() {
		invocation.Dir = a.dir
	}
	runErr := a.exec.Run(ctx, invocation)

	for _, d := range parseStderr(stderr.String(), a.source) {
		sink.Report(d)
	}
	if runErr != nil {
		return a.degraded(sink, text, "asciidoctor failed: "+runErr.Error())
	}

	page, err := htmldoc.Parse(&stdout)
	if err != nil {
		return a.degraded(sink, text, err.Error())
	}

	title := htmldoc.TakeText(page.Find("body"), "#header > h1")
	content := page.Container("#content")
	fragment, err := htmldoc.Fragment(content)
	if err != nil {
		return a.degraded(sink, text, err.Error())
	}
	fragment = strings.Trim(fragment, "\n") + "\n" + sink.Inline()

	javascript := ""
	if a.math && (markup.HasMathMarkup(fragment) || markup.HasMathDelimiters(fragment)) {
		javascript = markup.MathJaxScript(a.mathJaxURL)
	}

	stylesheet := baselineCSS
	if css := page.Stylesheet(); css != "" {
		stylesheet = css + "\n" + baselineCSS
	}

	return markup.NewDocument(markup.DocumentParts{
		Body:        fragment,
		Title:       title,
		Stylesheet:  stylesheet,
		JavaScript:  javascript,
		Diagnostics: sink.Diagnostics(),
	})
}

func (a *Adapter) degraded(sink *markup.Sink, text, message string) markup.Document {
	d := markup.Diagnostic{Severity: markup.SeveritySevere, Source: a.source, Message: message}
	sink.Report(d)

	var sb strings.Builder
	sb.WriteString(`<div id="content">` + "\n")
	if sink.Reportable(d) {
		sb.WriteString(markup.RenderDiagnostic(d))
	}
	sb.WriteString(`<div class="literalblock"><div class="content"><pre>`)
	sb.WriteString(html.EscapeString(text))
	sb.WriteString("</pre></div></div>\n</div>\n")

	return markup.NewDocument(markup.DocumentParts{
		Body:        sb.String(),
		Stylesheet:  baselineCSS,
		Diagnostics: sink.Diagnostics(),
	})
}

// asciidoctor: WARNING: <stdin>: line 3: section title out of sequence
var stderrPattern = regexp.MustCompile(`^asciidoctor: ([A-Z]+): (?:(\S+): line (\d+): )?(.*)$`)

// parseStderr turns the asciidoctor log into diagnostics. Lines that do not
// start a message continue the previous one.
func parseStderr(stderr, source string) []markup.Diagnostic {
	var out []markup.Diagnostic
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := stderrPattern.FindStringSubmatch(line)
		if m == nil {
			if len(out) > 0 {
				out[len(out)-1].Message += "\n" + strings.TrimSpace(line)
			} else {
				out = append(out, markup.Diagnostic{Severity: markup.SeverityError, Source: source, Message: strings.TrimSpace(line)})
			}
			continue
		}

		severity, ok := markup.ParseSeverity(m[1])
		if !ok {
			severity = markup.SeverityWarning
		}
		d := markup.Diagnostic{Severity: severity, Source: source, Message: m[4]}
		if m[2] != "" && m[2] != "<stdin>" {
			d.Source = m[2]
		}
		if m[3] != "" {
			d.Line, _ = strconv.Atoi(m[3])
		}
		out = append(out, d)
	}
	return out
}
