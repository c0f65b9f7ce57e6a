package restructuredtext

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgonek/markups/markup"
)

func requireDocutils(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping docutils integration test in short mode")
	}
	if !Kind.Available() {
		t.Skip("docutils is not installed")
	}
}

func requireDot(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("dot"); err != nil {
		t.Skip("graphviz is not installed")
	}
}

func TestIntegrationBasic(t *testing.T) {
	requireDocutils(t)

	adapter, err := Kind.New(quietSettings(nil))
	require.NoError(t, err)

	doc := adapter.Convert(context.Background(), basicText)
	assert.Equal(t, "Hello, world!", doc.Title())
	assert.Contains(t, doc.Body(), "<strong>reStructuredText</strong>")
	assert.Contains(t, doc.Body(), "Some subtitle")
	assert.NotContains(t, doc.Body(), "<h1")
	assert.Contains(t, doc.Stylesheet(), ".code")
	assert.Empty(t, doc.Diagnostics())
}

func TestIntegrationMathJax(t *testing.T) {
	requireDocutils(t)

	adapter, err := Kind.New(quietSettings(nil))
	require.NoError(t, err)

	doc := adapter.Convert(context.Background(), "Some math: :math:`\\sqrt{2}`\n")
	assert.Contains(t, doc.JavaScript(), markup.DefaultMathJaxURL)
	assert.Contains(t, doc.Body(), `class="math"`)
}

func TestIntegrationErrors(t *testing.T) {
	requireDocutils(t)

	settings := quietSettings(nil)
	settings.BasePath = "/dev/null"
	adapter, err := Kind.New(settings)
	require.NoError(t, err)

	doc := adapter.Convert(context.Background(), "Hello `World\n")
	assert.Contains(t, doc.Body(), "System Message: WARNING/2")
	assert.Contains(t, doc.Body(), "/dev/null")
	require.NotEmpty(t, doc.Diagnostics())
	assert.Equal(t, markup.SeverityWarning, doc.Diagnostics()[0].Severity)
	assert.Equal(t, "/dev/null", doc.Diagnostics()[0].Source)
}

func TestIntegrationErrorsOverridden(t *testing.T) {
	requireDocutils(t)

	adapter, err := Kind.New(quietSettings(map[string]any{
		markup.SettingMinimumReportSeverity: int(markup.SeveritySevere),
	}))
	require.NoError(t, err)

	doc := adapter.Convert(context.Background(), "Hello `World\n")
	assert.NotContains(t, doc.Body(), "System Message")
	assert.NotEmpty(t, doc.Diagnostics())
}

func TestIntegrationDigraph(t *testing.T) {
	requireDocutils(t)
	requireDot(t)

	dir := t.TempDir()
	adapter, err := Kind.New(quietSettings(map[string]any{markup.SettingDiagramDir: dir}))
	require.NoError(t, err)

	doc := adapter.Convert(context.Background(), ".. digraph:: GraphName\n\n   a -> b;\n\nAfter the graph.\n")
	require.Len(t, doc.Artifacts(), 1)
	assert.Contains(t, doc.Body(), `<object data="`+filepath.ToSlash(doc.Artifacts()[0])+`"`)
	assert.Contains(t, doc.Body(), "After the graph.")

	svg, err := os.ReadFile(doc.Artifacts()[0])
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<!-- Title: GraphName Pages: 1 -->")
}

func TestIntegrationGraphvizFile(t *testing.T) {
	requireDocutils(t)
	requireDot(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flow.dot"), []byte("digraph Flow {\na -> b;\n}\n"), 0o644))

	settings := quietSettings(map[string]any{markup.SettingDiagramDir: filepath.Join(dir, "out")})
	settings.BasePath = filepath.Join(dir, "doc.rst")
	adapter, err := Kind.New(settings)
	require.NoError(t, err)

	doc := adapter.Convert(context.Background(), ".. graphviz:: flow.dot\n")
	require.Len(t, doc.Artifacts(), 1)

	svg, err := os.ReadFile(doc.Artifacts()[0])
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<!-- Title: Flow Pages: 1 -->")
}
