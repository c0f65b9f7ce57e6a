package restructuredtext

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/rgonek/markups/internal/diagram"
	"github.com/rgonek/markups/markup"
)

var (
	directivePattern = regexp.MustCompile(`^([ \t]*)\.\.[ \t]+(digraph|graph|graphviz)::(?:[ \t]+(.*?))?[ \t]*$`)
	fieldPattern     = regexp.MustCompile(`^:([A-Za-z][\w-]*):(?:[ \t]+(.*))?$`)
	markerPattern    = regexp.MustCompile(`<!--\s*(markups-diagram-[0-9a-f]+-\d+)\s*-->`)
	explicitPattern  = regexp.MustCompile(`^\.\.(?:[ \t]+(\S.*))?$`)
	anyDirective     = regexp.MustCompile(`^([A-Za-z0-9][\w.+:-]*?)::(?:[ \t]|$)`)
)

// literalDirectives have content docutils does not parse as markup.
var literalDirectives = map[string]bool{
	"code":           true,
	"code-block":     true,
	"sourcecode":     true,
	"parsed-literal": true,
	"raw":            true,
	"math":           true,
}

// quoteChars may start the lines of a quoted literal block.
const quoteChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// directive is one graphviz directive block of the source.
type directive struct {
	name    string
	arg     string
	line    int
	options map[string]string
	content string
}

// source returns the complete Graphviz description of d.
func (d directive) source() string {
	if d.name == "graphviz" {
		return d.content
	}
	head := d.name
	if d.arg != "" {
		head += " " + d.arg
	}
	return fmt.Sprintf("%s {\n%s\n}\n", head, d.content)
}

type preprocessed struct {
	source     string
	directives map[string]directive
}

// preprocess replaces each graphviz directive block with a comment marker
// padded by blank lines, so docutils line numbers still match the original
// text. Literal blocks and comments are copied unchanged.
func (a *Adapter) preprocess(text string) preprocessed {
	out := preprocessed{source: text}
	if !a.diagrams.Enabled || !strings.Contains(text, "::") {
		return out
	}

	lines := strings.Split(text, "\n")
	nonce := strconv.FormatUint(xxhash.Sum64String(text), 16)
	result := make([]string, 0, len(lines))
	out.directives = map[string]directive{}

	for i := 0; i < len(lines); {
		m := directivePattern.FindStringSubmatch(lines[i])
		if m == nil {
			end := i + 1
			if opaque(lines[i]) {
				end = opaqueEnd(lines, i)
			}
			result = append(result, lines[i:end]...)
			i = end
			continue
		}

		end := blockEnd(lines, i, indentWidth(m[1]))
		token := fmt.Sprintf("markups-diagram-%s-%d", nonce, len(out.directives))
		out.directives[token] = parseDirective(m[2], m[3], i+1, lines[i+1:end])

		result = append(result, m[1]+".. "+token)
		for j := i + 1; j < end; j++ {
			result = append(result, "")
		}
		i = end
	}

	out.source = strings.Join(result, "\n")
	return out
}

// substitute renders the diagrams whose markers docutils emitted as
// comments and swaps them in. Markers docutils did not emit are never
// rendered.
func (a *Adapter) substitute(ctx context.Context, sink *markup.Sink, pre preprocessed, body string) (string, []string) {
	if len(pre.directives) == 0 {
		return body, nil
	}
	var artifacts []string
	rendered := map[string]bool{}
	body = markerPattern.ReplaceAllStringFunc(body, func(m string) string {
		token := markerPattern.FindStringSubmatch(m)[1]
		d, ok := pre.directives[token]
		if !ok || rendered[token] {
			return m
		}
		rendered[token] = true
		replacement, artifact := a.renderDirective(ctx, sink, d)
		if artifact != "" {
			artifacts = append(artifacts, artifact)
		}
		return replacement
	})
	return body, artifacts
}

func (a *Adapter) renderDirective(ctx context.Context, sink *markup.Sink, d directive) (string, string) {
	alt := d.options["alt"]

	var outcome diagram.Outcome
	switch {
	case d.name == "graphviz" && d.arg != "":
		outcome = a.diagrams.RenderFile(ctx, sink, d.arg, alt, d.line)
	case strings.TrimSpace(d.content) == "":
		diag := markup.Diagnostic{
			Severity: markup.SeverityError,
			Source:   a.diagrams.Source,
			Line:     d.line,
			Message:  fmt.Sprintf("Error in %q directive: graph content or a file argument is required.", d.name),
		}
		sink.Report(diag)
		outcome = diagram.Outcome{Inline: &diag}
	default:
		outcome = a.diagrams.Render(ctx, sink, d.source(), alt, d.line)
	}

	switch {
	case outcome.HTML != "":
		return outcome.HTML + "\n", outcome.Artifact
	case outcome.Inline != nil && sink.Reportable(*outcome.Inline):
		return markup.RenderDiagnostic(*outcome.Inline), ""
	default:
		return "", ""
	}
}

// opaque reports whether line opens a block whose content docutils does
// not parse as markup: a literal block after "::", a comment or a code
// directive.
func opaque(line string) bool {
	trimmed := strings.TrimSpace(line)
	m := explicitPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return strings.HasSuffix(trimmed, "::")
	}
	rest := m[1]
	if rest == "" {
		return true
	}
	if d := anyDirective.FindStringSubmatch(rest); d != nil {
		return literalDirectives[strings.ToLower(d[1])]
	}
	return !strings.ContainsRune("[_|", rune(rest[0]))
}

// opaqueEnd returns the index of the first line after the literal block or
// comment opened at start. Besides indented blocks it skips quoted literal
// blocks: unindented lines that all start with the same punctuation.
func opaqueEnd(lines []string, start int) int {
	indent := indentWidth(lines[start])
	if end := blockEnd(lines, start, indent); end > start+1 {
		return end
	}
	if strings.HasPrefix(strings.TrimSpace(lines[start]), "..") {
		return start + 1
	}

	j := start + 1
	for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
		j++
	}
	if j == start+1 || j == len(lines) || indentWidth(lines[j]) != indent {
		return start + 1
	}
	quote := expandTabs(lines[j])[indent]
	if !strings.ContainsRune(quoteChars, rune(quote)) {
		return start + 1
	}
	for j < len(lines) && indentWidth(lines[j]) == indent && strings.TrimSpace(lines[j]) != "" &&
		expandTabs(lines[j])[indent] == quote {
		j++
	}
	return j
}

// blockEnd returns the index of the first line after the directive at
// start: the body is every following line that is blank or indented deeper
// than the directive. Trailing blank lines are left outside.
func blockEnd(lines []string, start, indent int) int {
	end := start + 1
	for j := start + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "" {
			continue
		}
		if indentWidth(lines[j]) <= indent {
			break
		}
		end = j + 1
	}
	return end
}

func parseDirective(name, arg string, line int, body []string) directive {
	d := directive{name: name, arg: strings.TrimSpace(arg), line: line, options: map[string]string{}}

	body = dedent(body)
	i := 0
	for ; i < len(body); i++ {
		m := fieldPattern.FindStringSubmatch(body[i])
		if m == nil {
			break
		}
		d.options[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
	}
	d.content = strings.Trim(strings.Join(body[i:], "\n"), "\n")
	return d
}

func dedent(lines []string) []string {
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if w := indentWidth(line); common < 0 || w < common {
			common = w
		}
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		expanded := expandTabs(line)
		if len(expanded) >= common && common > 0 {
			out[i] = expanded[common:]
		} else {
			out[i] = strings.TrimLeft(expanded, " ")
		}
	}
	return out
}

func indentWidth(line string) int {
	expanded := expandTabs(line)
	return len(expanded) - len(strings.TrimLeft(expanded, " "))
}

// expandTabs expands leading tabs to 8 column stops, as docutils does.
func expandTabs(line string) string {
	var sb strings.Builder
	col := 0
	for i, r := range line {
		switch r {
		case '\t':
			n := 8 - col%8
			sb.WriteString(strings.Repeat(" ", n))
			col += n
		case ' ':
			sb.WriteByte(' ')
			col++
		default:
			sb.WriteString(line[i:])
			return sb.String()
		}
	}
	return sb.String()
}
