// Package diagram connects markup adapters to the graphviz renderer and
// turns renderer outcomes into embeddings and diagnostics.
package diagram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rgonek/markups/graphviz"
	"github.com/rgonek/markups/internal/command"
	"github.com/rgonek/markups/markup"
)

// Config is the diagram part of an adapter's resolved settings.
type Config struct {
	Enabled  bool
	Dir      string
	BaseDir  string
	Source   string
	Renderer *graphviz.Renderer
}

// FromSettings reads the diagram keys of resolved settings. A nil executor
// selects the shared os/exec renderer.
func FromSettings(settings markup.Settings, exec command.Executor) Config {
	binary := settings.String(markup.SettingGraphvizDot)
	renderer := graphviz.Shared(binary)
	if exec != nil {
		renderer = graphviz.New(graphviz.WithExecutor(exec), graphviz.WithBinary(binary))
	}
	return Config{
		Enabled:  settings.Bool(markup.SettingDiagrams),
		Dir:      settings.String(markup.SettingDiagramDir),
		BaseDir:  BaseDir(settings.BasePath),
		Source:   SourceName(settings.BasePath),
		Renderer: renderer,
	}
}

// BaseDir returns the directory relative references are resolved against.
func BaseDir(basePath string) string {
	if strings.TrimSpace(basePath) == "" {
		return "."
	}
	return filepath.Dir(basePath)
}

// SourceName is the name diagnostics cite for the converted text.
func SourceName(basePath string) string {
	if strings.TrimSpace(basePath) == "" {
		return "<string>"
	}
	return basePath
}

// Outcome is the result of one diagram.
type Outcome struct {
	// HTML embeds the rendered file; empty when the diagram is omitted.
	HTML string
	// Ref is the slash form path of the rendered file.
	Ref string
	// Artifact is the generated file.
	Artifact string
	// Inline is a diagnostic describing a problem with the diagram itself,
	// already reported to the sink, that the caller should render in place
	// when the sink allows it.
	Inline *markup.Diagnostic
}

// Resolve returns the path of a referenced description file.
func (c Config) Resolve(ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(c.BaseDir, ref)
}

// RenderFile renders the description stored at ref.
func (c Config) RenderFile(ctx context.Context, sink *markup.Sink, ref, alt string, line int) Outcome {
	data, err := os.ReadFile(c.Resolve(ref))
	if err != nil {
		d := markup.Diagnostic{
			Severity: markup.SeverityError,
			Source:   c.Source,
			Line:     line,
			Message:  fmt.Sprintf("graphviz: cannot read diagram file %q: %v", ref, err),
		}
		sink.Report(d)
		return Outcome{Inline: &d}
	}
	return c.Render(ctx, sink, string(data), alt, line)
}

// Render renders an inline description.
func (c Config) Render(ctx context.Context, sink *markup.Sink, source, alt string, line int) Outcome {
	res, err := c.Renderer.Render(ctx, graphviz.Request{Source: source, OutputDir: c.Dir})
	if err == nil {
		return Outcome{HTML: graphviz.Embed(res.Ref, alt), Ref: res.Ref, Artifact: res.Path}
	}

	var renderErr *graphviz.RenderError
	switch {
	case errors.As(err, &renderErr) && ctx.Err() == nil && renderErr.ExitCode > 0:
		d := markup.Diagnostic{
			Severity: markup.SeverityError,
			Source:   c.Source,
			Line:     line,
			Message:  "graphviz: " + strings.TrimSpace(firstLine(renderErr.Stderr, renderErr.Error())),
		}
		sink.Report(d)
		return Outcome{Inline: &d}
	default:
		sink.Report(markup.Diagnostic{
			Severity: markup.SeverityWarning,
			Source:   c.Source,
			Line:     line,
			Message:  "diagram omitted: " + err.Error(),
			External: true,
		})
		return Outcome{}
	}
}

func firstLine(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
