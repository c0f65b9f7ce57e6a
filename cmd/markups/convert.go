package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rgonek/markups/markup"
)

const (
	formatHTML       = "html"
	formatJSON       = "json"
	formatBody       = "body"
	formatTitle      = "title"
	formatStylesheet = "stylesheet"
	formatJavaScript = "javascript"
)

var convertFormats = []string{formatHTML, formatJSON, formatBody, formatTitle, formatStylesheet, formatJavaScript}

type convertOptions struct {
	kind     string
	basePath string
	set      []string
	out      string
	css      string
	failOn   string
}

func newConvertCmd(a *app) *cobra.Command {
	opts := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert a markup document to HTML",
		Long: `Convert reads a document from file, or from stdin when file is "-" or
omitted, and writes the converted result.

The markup kind is inferred from the file extension unless --kind is given;
reading stdin requires --kind. Settings come from the config file and from
repeated --set key=value flags.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 && args[0] != "-" {
				path = args[0]
			}
			return a.convert(cmd, path, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "", "markup kind or alias (default: inferred from the file extension)")
	cmd.Flags().StringP("format", "f", formatHTML, "output: "+strings.Join(convertFormats, ", "))
	cmd.Flags().StringVar(&opts.basePath, "base-path", "", "source path used for relative references and diagnostics (default: the input file)")
	cmd.Flags().StringArrayVarP(&opts.set, "set", "s", nil, "conversion setting as key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&opts.css, "css", "", "extra stylesheet file appended to the page (html output)")
	cmd.Flags().StringVar(&opts.failOn, "fail-on", "", "exit with an error when a diagnostic at or above this level is reported")
	_ = a.config.BindPFlag("format", cmd.Flags().Lookup("format"))

	return cmd
}

func (a *app) convert(cmd *cobra.Command, path string, opts *convertOptions) error {
	format := strings.ToLower(a.config.GetString("format"))
	if !slices.Contains(convertFormats, format) {
		return fmt.Errorf("unknown format %q (allowed: %s)", format, strings.Join(convertFormats, ", "))
	}

	var failOn markup.Severity
	if opts.failOn != "" {
		level, ok := markup.ParseSeverity(opts.failOn)
		if !ok {
			return fmt.Errorf("unknown severity %q", opts.failOn)
		}
		failOn = level
	}

	kind, err := a.resolveKind(path, opts.kind)
	if err != nil {
		return err
	}

	text, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	basePath := opts.basePath
	if basePath == "" {
		basePath = path
	}
	settings, err := settingsFor(a.config, kind, basePath, opts.set)
	if err != nil {
		return err
	}

	adapter, err := a.registry.ForKind(kind.Name(), settings)
	if err != nil {
		return err
	}

	log.Debug().Str("kind", kind.Name()).Str("path", path).Msg("converting")
	doc := adapter.Convert(cmd.Context(), text)
	for _, artifact := range doc.Artifacts() {
		log.Debug().Str("file", artifact).Msg("generated diagram")
	}

	output, err := render(doc, format, path, opts.css)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), opts.out, output); err != nil {
		return err
	}

	if opts.failOn != "" {
		if n := countAtLeast(doc.Diagnostics(), failOn); n > 0 {
			return fmt.Errorf("%d diagnostic(s) at or above %s", n, failOn)
		}
	}
	return nil
}

func (a *app) resolveKind(path, name string) (*markup.Kind, error) {
	if name != "" {
		kind, ok := a.registry.Lookup(name)
		if !ok {
			return nil, &markup.ConfigError{Kind: name, Err: markup.ErrUnknownKind}
		}
		return kind, nil
	}
	if path == "" {
		return nil, fmt.Errorf("--kind is required when reading stdin")
	}
	kind, ok := a.registry.KindForFilename(path)
	if !ok {
		return nil, &markup.ConfigError{Path: path, Err: markup.ErrNoKindForFile}
	}
	return kind, nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}

func render(doc markup.Document, format, path, cssFile string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding document: %w", err)
		}
		return string(data) + "\n", nil
	case formatBody:
		return doc.Body(), nil
	case formatTitle:
		return doc.Title() + "\n", nil
	case formatStylesheet:
		return doc.Stylesheet(), nil
	case formatJavaScript:
		return doc.JavaScript(), nil
	}

	opts := markup.PageOptions{}
	if path != "" {
		opts.FallbackTitle = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if cssFile != "" {
		css, err := os.ReadFile(cssFile)
		if err != nil {
			return "", fmt.Errorf("reading stylesheet: %w", err)
		}
		opts.CustomCSS = string(css)
	}
	return doc.HTML(opts), nil
}

func writeOutput(stdout io.Writer, path, output string) error {
	if path == "" {
		_, err := io.WriteString(stdout, output)
		return err
	}
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func countAtLeast(diagnostics []markup.Diagnostic, level markup.Severity) int {
	n := 0
	for _, d := range diagnostics {
		if d.Severity >= level {
			n++
		}
	}
	return n
}
