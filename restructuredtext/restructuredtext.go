// Package restructuredtext converts reStructuredText to HTML by running the
// docutils rst2html front end.
//
// Diagnostics are produced by docutils itself: its system messages are kept
// in the body when at or above the configured severity, and its stderr
// stream is parsed into the document diagnostics. Graphviz directives
// (digraph, graph, graphviz) are rendered before docutils sees the text.
package restructuredtext

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rgonek/markups/internal/command"
	"github.com/rgonek/markups/internal/diagram"
	"github.com/rgonek/markups/internal/htmldoc"
	"github.com/rgonek/markups/markup"
)

// KindName is the registry name of the reStructuredText kind.
const KindName = "restructuredtext"

// reStructuredText specific settings keys.
const (
	SettingDocutilsCommand    = "docutils_command"
	SettingInitialHeaderLevel = "initial_header_level"
	SettingDocTitle           = "doctitle"
)

// Candidates are the docutils front ends tried, in order, when no command
// is configured.
var Candidates = []string{"rst2html", "rst2html.py", "rst2html5", "rst2html5.py"}

//go:embed baseline.css
var baselineCSS string

// Kind is the reStructuredText capability descriptor backed by os/exec.
var Kind = NewKind()

// Option configures the kind returned by NewKind.
type Option func(*kindConfig)

type kindConfig struct {
	exec   command.Executor
	locate func() (string, error)
}

// WithExecutor runs docutils and the diagram renderer through e.
func WithExecutor(e command.Executor) Option {
	return func(c *kindConfig) {
		c.exec = e
	}
}

// NewKind returns a reStructuredText kind descriptor.
func NewKind(opts ...Option) *markup.Kind {
	cfg := &kindConfig{exec: command.Default}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.locate = sync.OnceValues(func() (string, error) {
		return command.Locate(cfg.exec, Candidates...)
	})

	return markup.MustKind(markup.KindSpec{
		Name:                KindName,
		DisplayName:         "reStructuredText",
		Aliases:             []string{"rst", "rest", "docutils"},
		Extensions:          []string{".rst", ".rest"},
		HomePage:            "https://docutils.sourceforge.io/",
		SyntaxDocumentation: "https://docutils.sourceforge.io/docs/user/rst/quickref.html",
		Options:             options(),
		ThreadSafe:          true,
		CommandSetting:      SettingDocutilsCommand,
		Probe: func() bool {
			_, err := cfg.locate()
			return err == nil
		},
		New: func(settings markup.Settings) (markup.Adapter, error) {
			return newAdapter(settings, cfg)
		},
	})
}

func options() []markup.Option {
	opts := append(markup.MathOptions(), markup.DiagramOptions()...)
	return append(opts,
		markup.Option{Name: SettingDocutilsCommand, Type: markup.OptionString, Default: "", Description: "docutils HTML front end; detected when empty"},
		markup.Option{Name: SettingInitialHeaderLevel, Type: markup.OptionInt, Default: 1, Description: "HTML level of the top section headings"},
		markup.Option{Name: SettingDocTitle, Type: markup.OptionBool, Default: true, Description: "promote a lone top section title to document title"},
	)
}

// Adapter converts reStructuredText. Every call runs its own process, so
// one Adapter may serve concurrent calls.
type Adapter struct {
	settings    markup.Settings
	exec        command.Executor
	binary      string
	math        bool
	mathJaxURL  string
	headerLevel int
	docTitle    bool
	diagrams    diagram.Config
}

func newAdapter(settings markup.Settings, cfg *kindConfig) (*Adapter, error) {
	level := settings.Int(SettingInitialHeaderLevel)
	if level < 1 || level > 6 {
		return nil, &markup.ConfigError{
			Kind: KindName,
			Key:  SettingInitialHeaderLevel,
			Err:  markup.ErrInvalidSetting,
		}
	}

	binary := strings.TrimSpace(settings.String(SettingDocutilsCommand))
	if binary == "" {
		binary = Candidates[0]
		if located, err := cfg.locate(); err == nil {
			binary = located
		}
	} else if _, err := cfg.exec.LookPath(binary); err != nil {
		return nil, &markup.ConfigError{Kind: KindName, Key: SettingDocutilsCommand, Err: fmt.Errorf("%w: %v", markup.ErrKindUnavailable, err)}
	}

	return &Adapter{
		settings:    settings,
		exec:        cfg.exec,
		binary:      binary,
		math:        settings.Bool(markup.SettingMath),
		mathJaxURL:  settings.String(markup.SettingMathJaxURL),
		headerLevel: level,
		docTitle:    settings.Bool(SettingDocTitle),
		diagrams:    diagram.FromSettings(settings, cfg.exec),
	}, nil
}

// Args returns the docutils command line for a conversion reporting at
// level and above.
func (a *Adapter) Args(level markup.Severity) []string {
	mathOutput := "--math-output=HTML"
	if a.math {
		mathOutput = "--math-output=MathJax"
	}
	args := []string{
		"--report=" + strconv.Itoa(int(level)),
		"--halt=5",
		mathOutput,
		"--embed-stylesheet",
		"--no-generator",
		"--no-datestamp",
		"--no-source-link",
		"--input-encoding=utf-8",
		"--output-encoding=utf-8",
		"--initial-header-level=" + strconv.Itoa(a.headerLevel),
	}
	if !a.docTitle {
		args = append(args, "--no-doc-title")
	}
	return args
}

// reportLevel is the level docutils runs at: low enough to capture warnings
// on stderr even when the body shows fewer.
func reportLevel(threshold markup.Severity) markup.Severity {
	if threshold > markup.SeverityWarning {
		return markup.SeverityWarning
	}
	if threshold < markup.SeverityInfo {
		return markup.SeverityInfo
	}
	return threshold
}

// Convert renders text. It never fails: docutils problems are reported as
// diagnostics in the returned document.
func (a *Adapter) Convert(ctx context.Context, text string) markup.Document {
	sink := markup.NewSink(KindName, a.settings)
	defer sink.Close()

	pre := a.preprocess(text)

	var stdout, stderr bytes.Buffer
	invocation := command.Invocation{
		Name:   a.binary,
		Args:   a.Args(reportLevel(sink.Threshold())),
		Stdin:  strings.NewReader(pre.source),
		Stdout: &stdout,
		Stderr: &stderr,
	}
	if info, err := os.Stat(a.diagrams.BaseDir); err == nil && info.IsDir() {
		invocation.Dir = a.diagrams.BaseDir
	}
	runErr := a.exec.Run(ctx, invocation)

	for _, d := range parseStderr(stderr.String(), a.diagrams.Source) {
		sink.Report(d)
	}

	if runErr != nil {
		return a.degraded(sink, text, "docutils failed: "+runErr.Error())
	}

	body, title, css, err := a.postprocess(sink, stdout.String())
	if err != nil {
		return a.degraded(sink, text, err.Error())
	}
	body, artifacts := a.substitute(ctx, sink, pre, body)

	javascript := ""
	if a.math && markup.HasMathMarkup(body) {
		javascript = markup.MathJaxScript(a.mathJaxURL)
	}

	stylesheet := baselineCSS
	if css != "" {
		stylesheet = css + "\n" + baselineCSS
	}

	return markup.NewDocument(markup.DocumentParts{
		Body:        body,
		Title:       title,
		Stylesheet:  stylesheet,
		JavaScript:  javascript,
		Diagnostics: sink.Diagnostics(),
		Artifacts:   artifacts,
	})
}

func (a *Adapter) postprocess(sink *markup.Sink, output string) (body, title, css string, err error) {
	page, err := htmldoc.Parse(strings.NewReader(output))
	if err != nil {
		return "", "", "", err
	}

	css = page.Stylesheet()
	container := page.Container("div.document", "main")
	if a.docTitle {
		title = htmldoc.TakeText(container, "h1.title")
	}

	filterSystemMessages(container, sink.Threshold())
	htmldoc.ReplaceText(container, ".system-message", "<stdin>", a.diagrams.Source)

	body, err = htmldoc.Fragment(container)
	if err != nil {
		return "", "", "", err
	}
	return strings.TrimLeft(body, "\n") + "\n", title, css, nil
}

// degraded is the document returned when docutils could not convert text.
func (a *Adapter) degraded(sink *markup.Sink, text, message string) markup.Document {
	d := markup.Diagnostic{
		Severity: markup.SeveritySevere,
		Source:   a.diagrams.Source,
		Message:  message,
	}
	sink.Report(d)

	var sb strings.Builder
	sb.WriteString(`<div class="document">` + "\n")
	if sink.Reportable(d) {
		sb.WriteString(markup.RenderDiagnostic(d))
	}
	sb.WriteString(`<pre class="literal-block">`)
	sb.WriteString(html.EscapeString(text))
	sb.WriteString("</pre>\n</div>\n")

	return markup.NewDocument(markup.DocumentParts{
		Body:        sb.String(),
		Stylesheet:  baselineCSS,
		Diagnostics: sink.Diagnostics(),
	})
}
