// Package textile converts Textile to HTML by running pandoc.
package textile

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rgonek/markups/internal/command"
	"github.com/rgonek/markups/internal/diagram"
	"github.com/rgonek/markups/internal/htmldoc"
	"github.com/rgonek/markups/markup"
)

// KindName is the registry name of the Textile kind.
const KindName = "textile"

// Textile specific settings keys.
const (
	SettingPandocCommand    = "pandoc_command"
	SettingTitleFromHeading = "title_from_heading"
)

// DefaultCommand is the pandoc program used when none is configured.
const DefaultCommand = "pandoc"

//go:embed baseline.css
var baselineCSS string

// Kind is the Textile capability descriptor backed by os/exec.
var Kind = NewKind()

// Option configures the kind returned by NewKind.
type Option func(*kindConfig)

type kindConfig struct {
	exec command.Executor
}

// WithExecutor runs pandoc through e.
func WithExecutor(e command.Executor) Option {
	return func(c *kindConfig) {
		c.exec = e
	}
}

// NewKind returns a Textile kind descriptor.
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
		DisplayName:         "Textile",
		Aliases:             []string{"txtl"},
		Extensions:          []string{".textile"},
		HomePage:            "https://textile-lang.com/",
		SyntaxDocumentation: "https://textile-lang.com/doc",
		Options: append(markup.MathOptions(),
			markup.Option{Name: SettingPandocCommand, Type: markup.OptionString, Default: DefaultCommand, Description: "pandoc executable"},
			markup.Option{Name: SettingTitleFromHeading, Type: markup.OptionBool, Default: false, Description: "use a leading level 1 heading as the document title"},
		),
		ThreadSafe:     true,
		Probe:          probe,
		CommandSetting: SettingPandocCommand,
		New: func(settings markup.Settings) (markup.Adapter, error) {
			return newAdapter(settings, cfg)
		},
	})
}

// Adapter converts Textile. Each call runs its own pandoc process.
type Adapter struct {
	settings         markup.Settings
	exec             command.Executor
	binary           string
	math             bool
	mathJaxURL       string
	titleFromHeading bool
	source           string
	dir              string
}

func newAdapter(settings markup.Settings, cfg *kindConfig) (*Adapter, error) {
	binary := strings.TrimSpace(settings.String(SettingPandocCommand))
	if binary == "" {
		binary = DefaultCommand
	}
	if binary != DefaultCommand {
		if _, err := cfg.exec.LookPath(binary); err != nil {
			return nil, &markup.ConfigError{Kind: KindName, Key: SettingPandocCommand, Err: fmt.Errorf("%w: %v", markup.ErrKindUnavailable, err)}
		}
	}
	return &Adapter{
		settings:         settings,
		exec:             cfg.exec,
		binary:           binary,
		math:             settings.Bool(markup.SettingMath),
		mathJaxURL:       settings.String(markup.SettingMathJaxURL),
		titleFromHeading: settings.Bool(SettingTitleFromHeading),
		source:           diagram.SourceName(settings.BasePath),
		dir:              diagram.BaseDir(settings.BasePath),
	}, nil
}

// Args returns the pandoc command line.
func (a *Adapter) Args() []string {
	args := []string{
		"-f", "textile",
		"-t", "html5",
		"--standalone",
		"--mathjax",
		"--metadata", "pagetitle=" + a.pageTitle(),
	}
	if a.titleFromHeading {
		args = append(args, "--shift-heading-level-by=-1")
	}
	return args
}

func (a *Adapter) pageTitle() string {
	if a.settings.BasePath == "" {
		return "document"
	}
	return strings.TrimSuffix(filepath.Base(a.settings.BasePath), filepath.Ext(a.settings.BasePath))
}

// Convert renders text. Pandoc failures are reported in the returned
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
		return a.degraded(sink, text, "pandoc failed: "+runErr.Error())
	}

	page, err := htmldoc.Parse(&stdout)
	if err != nil {
		return a.degraded(sink, text, err.Error())
	}

	body := page.Container("body")
	title := ""
	if a.titleFromHeading {
		title = htmldoc.TakeText(body, "#title-block-header h1.title")
		body.Find("#title-block-header").Remove()
	}

	fragment, err := htmldoc.Fragment(body)
	if err != nil {
		return a.degraded(sink, text, err.Error())
	}
	fragment = strings.Trim(fragment, "\n") + "\n" + sink.Inline()

	javascript := ""
	if a.math && markup.HasMathMarkup(fragment) {
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
	if sink.Reportable(d) {
		sb.WriteString(markup.RenderDiagnostic(d))
	}
	sb.WriteString("<pre>")
	sb.WriteString(html.EscapeString(text))
	sb.WriteString("</pre>\n")

	return markup.NewDocument(markup.DocumentParts{
		Body:        sb.String(),
		Stylesheet:  baselineCSS,
		Diagnostics: sink.Diagnostics(),
	})
}

var (
	// [WARNING] Could not convert TeX math \frac{, rendering as TeX
	stderrPattern = regexp.MustCompile(`^\[(DEBUG|INFO|WARNING|ERROR)\]\s+(.*)$`)
	linePattern   = regexp.MustCompile(`\bline (\d+)`)
)

// parseStderr turns pandoc's log lines into diagnostics. Indented lines
// continue the previous message.
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
		severity, _ := markup.ParseSeverity(m[1])
		out = append(out, markup.Diagnostic{Severity: severity, Source: source, Message: m[2]})
	}
	for i := range out {
		if lm := linePattern.FindStringSubmatch(out[i].Message); lm != nil {
			out[i].Line, _ = strconv.Atoi(lm[1])
		}
	}
	return out
}
