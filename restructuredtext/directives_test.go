package restructuredtext

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgonek/markups/internal/command/commandtest"
	"github.com/rgonek/markups/markup"
)

func TestParseDirective(t *testing.T) {
	body := []string{"    :alt: Pipeline", "    :caption: ignored", "", "    a -> b;", "      b -> c;", ""}
	d := parseDirective("digraph", " Pipeline ", 4, body)

	assert.Equal(t, "Pipeline", d.arg)
	assert.Equal(t, 4, d.line)
	assert.Equal(t, "Pipeline", d.options["alt"])
	assert.Equal(t, "ignored", d.options["caption"])
	assert.Equal(t, "a -> b;\n  b -> c;", d.content)
	assert.Equal(t, "digraph Pipeline {\na -> b;\n  b -> c;\n}\n", d.source())
}

func TestDirectiveSourceWithoutName(t *testing.T) {
	d := directive{name: "graph", content: "a -- b"}
	assert.Equal(t, "graph {\na -- b\n}\n", d.source())

	full := directive{name: "graphviz", content: "digraph X { }"}
	assert.Equal(t, "digraph X { }", full.source())
}

func TestBlockEnd(t *testing.T) {
	lines := strings.Split("- item\n\n  .. digraph:: G\n\n     a -> b\n\n  continued\n\nnext", "\n")
	assert.Equal(t, 5, blockEnd(lines, 2, 2))

	tabbed := []string{".. graph:: G", "\ta -- b", "text"}
	assert.Equal(t, 2, blockEnd(tabbed, 0, 0))
	assert.Equal(t, 1, blockEnd([]string{".. graphviz:: x.dot", "after"}, 0, 0))
}

func TestDirectivePattern(t *testing.T) {
	tests := []struct {
		line string
		name string
		arg  string
		ok   bool
	}{
		{line: ".. digraph:: GraphName", name: "digraph", arg: "GraphName", ok: true},
		{line: "   ..  graph::  G  ", name: "graph", arg: "G", ok: true},
		{line: ".. graphviz:: /tmp/x.dot", name: "graphviz", arg: "/tmp/x.dot", ok: true},
		{line: ".. graphviz::", name: "graphviz", ok: true},
		{line: ".. image:: x.png"},
		{line: "digraph:: G"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			m := directivePattern.FindStringSubmatch(tt.line)
			if !tt.ok {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.name, m[2])
			assert.Equal(t, tt.arg, m[3])
		})
	}
}

func diagramAdapter(t *testing.T, fake *commandtest.Fake) *Adapter {
	t.Helper()
	adapter, ok := newTestAdapter(t, fake, quietSettings(map[string]any{markup.SettingDiagramDir: t.TempDir()})).(*Adapter)
	require.True(t, ok)
	return adapter
}

func TestSubstituteRendersEmittedMarkersOnly(t *testing.T) {
	fake := diagramFake()
	a := diagramAdapter(t, fake)
	pre := preprocessed{directives: map[string]directive{
		"markups-diagram-ab-0": {name: "digraph", arg: "G", line: 1, content: "a -> b;"},
		"markups-diagram-ab-1": {name: "digraph", arg: "H", line: 5, content: "c -> d;"},
	}}
	sink := markup.NewSink(KindName, quietSettings(nil))
	defer sink.Close()

	out, artifacts := a.substitute(context.Background(), sink, pre,
		"<p>a</p>\n<!-- markups-diagram-ab-0 -->\n<pre>.. markups-diagram-ab-1</pre>\n<!-- other -->")

	assert.Contains(t, out, `<object data="`)
	assert.Contains(t, out, "<pre>.. markups-diagram-ab-1</pre>")
	assert.Contains(t, out, "<!-- other -->")
	assert.Len(t, artifacts, 1)
	require.Len(t, fake.CallsTo("dot"), 1)
	assert.Equal(t, "digraph G {\na -> b;\n}\n", fake.CallsTo("dot")[0].Stdin)
}

func TestPreprocessLeavesOpaqueBlocks(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "literal block", text: "Write a graph like this::\n\n    .. digraph:: G\n\n       a -> b\n\nDone.\n"},
		{name: "expanded literal marker", text: "Example:\n\n::\n\n  .. graph:: G\n\n     a -- b\n"},
		{name: "quoted literal block", text: "Quoted::\n\n.. digraph:: G\n.. a -> b\n\nDone.\n"},
		{name: "comment", text: "..\n   .. digraph:: G\n\n      a -> b\n\nText.\n"},
		{name: "comment with text", text: ".. disabled for now\n   .. digraph:: G\n\n      a -> b\n"},
		{name: "code directive", text: ".. code-block:: rst\n\n   .. digraph:: G\n\n      a -> b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pre := diagramAdapter(t, diagramFake()).preprocess(tt.text)
			assert.Equal(t, tt.text, pre.source)
			assert.Empty(t, pre.directives)
		})
	}
}

func TestPreprocessKeepsNestedDirectives(t *testing.T) {
	text := ".. note::\n\n   .. digraph:: G\n\n      a -> b\n\n.. _target:\n\n.. digraph:: H\n\n   c -> d\n"
	pre := diagramAdapter(t, diagramFake()).preprocess(text)

	assert.Len(t, pre.directives, 2)
	assert.NotContains(t, pre.source, "digraph")
	assert.Equal(t, strings.Count(text, "\n"), strings.Count(pre.source, "\n"))
}

func TestOpaque(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{line: "Paragraph ending::", want: true},
		{line: "::", want: true},
		{line: "..", want: true},
		{line: ".. just a remark", want: true},
		{line: "  .. code:: python", want: true},
		{line: ".. raw:: html", want: true},
		{line: ".. note::", want: false},
		{line: ".. _target: https://example.com", want: false},
		{line: ".. [1] footnote", want: false},
		{line: ".. |sub| replace:: x", want: false},
		{line: "Plain paragraph.", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, opaque(tt.line), tt.line)
	}
}

func TestExpandTabs(t *testing.T) {
	assert.Equal(t, "        x\ty", expandTabs("\tx\ty"))
	assert.Equal(t, "        x", expandTabs("  \tx"))
	assert.Equal(t, 8, indentWidth("\tx"))
}

func TestParseStderr(t *testing.T) {
	stderr := "<stdin>:3: (ERROR/3) Unknown interpreted text role \"foo\".\n" +
		"\n" +
		".. foo:: bar\n" +
		"doc.rst:10: (WARNING/2) Title underline too short.\n" +
		"<stdin>: (SEVERE/4) Problems with \"include\" directive path.\n" +
		"garbage before anything\n"

	got := parseStderr(stderr, "/dev/null")
	require.Len(t, got, 3)

	assert.Equal(t, markup.Diagnostic{
		Severity: markup.SeverityError,
		Source:   "/dev/null",
		Line:     3,
		Message:  "Unknown interpreted text role \"foo\".\n.. foo:: bar",
	}, got[0])
	assert.Equal(t, "doc.rst", got[1].Source)
	assert.Equal(t, 10, got[1].Line)
	assert.Equal(t, markup.SeverityWarning, got[1].Severity)
	assert.Equal(t, 0, got[2].Line)
	assert.Equal(t, markup.SeveritySevere, got[2].Severity)
	assert.Contains(t, got[2].Message, "garbage before anything")
}

func TestFilterSystemMessages(t *testing.T) {
	const doc = `<div class="document">
<p><a href="#system-message-1" id="problematic-1" class="problematic">` + "`" + `</a></p>
<div class="system-messages section">
<h1>Docutils System Messages</h1>
<div class="system-message" id="system-message-1">
<p class="system-message-title">System Message: WARNING/2 (<tt>&lt;stdin&gt;</tt>, line 1)</p>
</div>
</div>
<div class="system-message" id="system-message-2">
<p class="system-message-title">System Message: ERROR/3 (<tt>&lt;stdin&gt;</tt>, line 2)</p>
</div>
</div>`

	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	require.NoError(t, err)
	scope := parsed.Find("div.document")

	filterSystemMessages(scope, markup.SeverityError)

	out, err := goquery.OuterHtml(scope)
	require.NoError(t, err)
	assert.NotContains(t, out, "system-message-1")
	assert.NotContains(t, out, "problematic")
	assert.NotContains(t, out, "Docutils System Messages")
	assert.Contains(t, out, "system-message-2")
	assert.Contains(t, out, "<p>`</p>")
}
