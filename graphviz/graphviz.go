// Package graphviz renders Graphviz descriptions to image files by running
// the dot program.
//
// Output files are content addressed: the same description and format
// always map to the same file name, and an existing file is reused instead
// of rendered again. Files are never deleted by this package.
package graphviz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/rgonek/markups/internal/command"
)

// DefaultBinary is the Graphviz program used when none is configured.
const DefaultBinary = "dot"

// DefaultPrefix starts every generated file name.
const DefaultPrefix = "graphviz"

// ErrUnavailable is returned by Render when the dot program is missing.
var ErrUnavailable = errors.New("graphviz renderer not available")

// RenderError reports a dot run that exited unsuccessfully, usually because
// the description is invalid.
type RenderError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RenderError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("graphviz exited with status %d: %s", e.ExitCode, msg)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer runs one dot binary.
type Renderer struct {
	exec      command.Executor
	binary    string
	available func() bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithExecutor replaces the process executor.
func WithExecutor(e command.Executor) Option {
	return func(r *Renderer) {
		r.exec = e
	}
}

// WithBinary sets the dot program name or path.
func WithBinary(binary string) Option {
	return func(r *Renderer) {
		if strings.TrimSpace(binary) != "" {
			r.binary = binary
		}
	}
}

// New creates a renderer. It does no I/O; availability is probed on first
// use and cached.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		exec:   command.Default,
		binary: DefaultBinary,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.available = sync.OnceValue(func() bool {
		_, err := r.exec.LookPath(r.binary)
		return err == nil
	})
	return r
}

var shared sync.Map

// Shared returns the process-wide renderer for binary backed by the os/exec
// executor, so availability is probed once per binary.
func Shared(binary string) *Renderer {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if r, ok := shared.Load(binary); ok {
		return r.(*Renderer)
	}
	r, _ := shared.LoadOrStore(binary, New(WithBinary(binary)))
	return r.(*Renderer)
}

// Binary returns the configured dot program.
func (r *Renderer) Binary() string { return r.binary }

// Available reports whether the dot program can be found.
func (r *Renderer) Available() bool { return r.available() }

// Request describes one diagram to render.
type Request struct {
	// Source is the complete Graphviz description.
	Source string
	// Format is the dot output format. Defaults to "svg".
	Format string
	// OutputDir receives the file. Relative paths are relative to the
	// working directory. Defaults to ".".
	OutputDir string
	// Prefix starts the file name. Defaults to DefaultPrefix.
	Prefix string
}

// Result locates a rendered file.
type Result struct {
	// Path is the file on disk.
	Path string
	// Ref is Path in slash form, suitable for embedding in HTML.
	Ref string
	// Reused is set when an identical file already existed.
	Reused bool
}

// FileName returns the content addressed file name for req.
func FileName(req Request) string {
	req = req.withDefaults()
	sum := xxhash.Sum64String(req.Format + "\x00" + req.Source)
	return req.Prefix + "-" + strconv.FormatUint(sum, 16) + "." + req.Format
}

func (req Request) withDefaults() Request {
	if req.Format == "" {
		req.Format = "svg"
	}
	if req.OutputDir == "" {
		req.OutputDir = "."
	}
	if req.Prefix == "" {
		req.Prefix = DefaultPrefix
	}
	return req
}

// Render writes the diagram described by req and returns its location.
func (r *Renderer) Render(ctx context.Context, req Request) (Result, error) {
	req = req.withDefaults()
	if !r.Available() {
		return Result{}, fmt.Errorf("%w: %s not found", ErrUnavailable, r.binary)
	}

	path := filepath.Join(req.OutputDir, FileName(req))
	result := Result{Path: path, Ref: filepath.ToSlash(path)}
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		result.Reused = true
		return result, nil
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating diagram directory %s: %w", req.OutputDir, err)
	}

	tmp, err := os.CreateTemp(req.OutputDir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return Result{}, fmt.Errorf("creating diagram file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	var stderr bytes.Buffer
	err = r.exec.Run(ctx, command.Invocation{
		Name:   r.binary,
		Args:   []string{"-T" + req.Format, "-o", tmpPath},
		Stdin:  strings.NewReader(req.Source),
		Stderr: &stderr,
	})
	if err != nil {
		return Result{}, &RenderError{ExitCode: command.ExitCode(err), Stderr: stderr.String(), Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return Result{}, fmt.Errorf("storing diagram %s: %w", path, err)
	}
	return result, nil
}

// Embed returns the HTML referencing a rendered SVG file.
func Embed(ref, alt string) string {
	var sb strings.Builder
	sb.WriteString(`<div class="graphviz"><object data="`)
	sb.WriteString(html.EscapeString(ref))
	sb.WriteString(`" type="image/svg+xml" class="graphviz">`)
	if alt != "" {
		sb.WriteString(`<p class="warning">`)
		sb.WriteString(html.EscapeString(alt))
		sb.WriteString(`</p>`)
	}
	sb.WriteString(`</object></div>`)
	return sb.String()
}

// Object returns an inline object element referencing a rendered SVG file,
// with alt as its fallback text.
func Object(ref, alt string) string {
	return `<object data="` + html.EscapeString(ref) + `" type="image/svg+xml" class="graphviz">` +
		html.EscapeString(alt) + `</object>`
}
