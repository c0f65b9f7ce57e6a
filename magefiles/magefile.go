//go:build mage

// Package main contains Mage build targets for markups developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "markups"
	cmdPkg  = "./cmd/markups"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests. Integration tests skip themselves when
// docutils, pandoc, asciidoctor or graphviz are missing.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Short runs the tests without the external converter integration tests.
func Short() error {
	return sh.RunV("go", "test", "-short", "./...")
}

// Fuzz runs the Markdown fuzz target for a short while.
func Fuzz() error {
	return sh.RunV("go", "test", "-run", "^$", "-fuzz", "FuzzConvertMarkdown", "-fuzztime", "30s", "./markdown")
}

// Lint vets the module.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Check runs Lint then Test.
func Check() {
	mg.SerialDeps(Lint, Test)
}

// Clean removes the built binary and the diagram files left by local runs.
func Clean() error {
	if err := sh.Rm(binDir); err != nil {
		return err
	}
	matches, err := filepath.Glob("graphviz-*.svg")
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := sh.Rm(match); err != nil {
			return err
		}
		fmt.Println("  removed", match)
	}
	return nil
}
