// Package command runs external converter and renderer programs.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrNotFound is returned by Locate when no candidate is on PATH.
var ErrNotFound = errors.New("executable not found")

// Executor abstracts process execution so adapters can be tested without
// the real tools installed.
type Executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, invocation Invocation) error
}

// Invocation describes one process run.
type Invocation struct {
	Name   string
	Args   []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (i Invocation) String() string {
	return strings.TrimSpace(i.Name + " " + strings.Join(i.Args, " "))
}

// OSExecutor is the production executor backed by os/exec.
type OSExecutor struct{}

func (OSExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (OSExecutor) Run(ctx context.Context, invocation Invocation) error {
	cmd := exec.CommandContext(ctx, invocation.Name, invocation.Args...)
	cmd.Dir = invocation.Dir
	cmd.Stdin = invocation.Stdin
	cmd.Stdout = invocation.Stdout
	cmd.Stderr = invocation.Stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", invocation.Name, ctxErr)
		}
		return fmt.Errorf("%s: %w", invocation.Name, err)
	}
	return nil
}

// Default is the executor used when none is injected.
var Default Executor = OSExecutor{}

// Locate returns the path of the first candidate found on PATH.
func Locate(e Executor, candidates ...string) (string, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if path, err := e.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(candidates, ", "))
}

// ExitCoder is implemented by errors carrying a process exit status, such
// as *exec.ExitError.
type ExitCoder interface {
	error
	ExitCode() int
}

// ExitCode extracts the exit status of a failed run, or -1 when the process
// did not exit normally.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}
