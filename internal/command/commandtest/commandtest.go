// Package commandtest provides a scripted command.Executor for tests.
package commandtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/rgonek/markups/internal/command"
)

// Handler simulates one program. Stdin is fully read into stdin.
type Handler func(inv command.Invocation, stdin string) error

// Fake is an executor whose programs are Go functions.
type Fake struct {
	mu       sync.Mutex
	programs map[string]Handler
	calls    []Call
}

// Call records one Run.
type Call struct {
	Name  string
	Args  []string
	Stdin string
}

// New returns a Fake with no programs installed.
func New() *Fake {
	return &Fake{programs: map[string]Handler{}}
}

// Install makes name resolvable and runnable.
func (f *Fake) Install(name string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.programs[name] = h
	return f
}

func (f *Fake) LookPath(file string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.programs[file]; ok {
		return file, nil
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

func (f *Fake) Run(ctx context.Context, inv command.Invocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	h, ok := f.programs[inv.Name]
	f.mu.Unlock()
	if !ok {
		return &exec.Error{Name: inv.Name, Err: exec.ErrNotFound}
	}

	var stdin string
	if inv.Stdin != nil {
		data, err := io.ReadAll(inv.Stdin)
		if err != nil {
			return err
		}
		stdin = string(data)
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: inv.Name, Args: append([]string(nil), inv.Args...), Stdin: stdin})
	f.mu.Unlock()

	return h(inv, stdin)
}

// Calls returns the recorded runs.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded runs of name.
func (f *Fake) CallsTo(name string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ExitError simulates a process that ran and exited unsuccessfully.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

func (e *ExitError) ExitCode() int { return e.Code }

// ErrExit simulates a non-zero exit.
var ErrExit error = &ExitError{Code: 1}

// Respond returns a handler writing stdout and stderr and returning err.
func Respond(stdout, stderr string, err error) Handler {
	return func(inv command.Invocation, _ string) error {
		if inv.Stdout != nil {
			io.WriteString(inv.Stdout, stdout)
		}
		if inv.Stderr != nil {
			io.WriteString(inv.Stderr, stderr)
		}
		return err
	}
}

var graphName = regexp.MustCompile(`^\s*(?:strict\s+)?(?:di)?graph\s+("?)([^\s{"]*)("?)\s*\{`)

// Dot simulates graphviz: it writes an SVG whose header names the tool and
// the graph to the path after -o, and fails on descriptions without braces.
func Dot() Handler {
	return func(inv command.Invocation, stdin string) error {
		if !strings.Contains(stdin, "{") || !strings.Contains(stdin, "}") {
			if inv.Stderr != nil {
				io.WriteString(inv.Stderr, "Error: <stdin>: syntax error in line 1 near 'a'\n")
			}
			return ErrExit
		}
		out := ""
		for i, arg := range inv.Args {
			if arg == "-o" && i+1 < len(inv.Args) {
				out = inv.Args[i+1]
			}
		}
		if out == "" {
			return fmt.Errorf("fake dot: missing -o")
		}
		title := "%3"
		if m := graphName.FindStringSubmatch(stdin); m != nil && m[2] != "" {
			title = m[2]
		}
		svg := "<?xml version=\"1.0\" encoding=\"UTF-8\" standalone=\"no\"?>\n" +
			"<!-- Generated by graphviz version 2.43.0 (0)\n -->\n" +
			"<!-- Title: " + title + " Pages: 1 -->\n" +
			"<svg width=\"62pt\" height=\"116pt\"></svg>\n"
		return os.WriteFile(out, []byte(svg), 0o644)
	}
}
