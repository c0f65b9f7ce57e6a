package asciidoc

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgonek/markups/internal/command/commandtest"
	"github.com/rgonek/markups/markup"
)

const basicText = "= Hello, world!\n\nSome *strong* text.\n"

const asciidoctorOutput = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Hello, world!</title>
<style>
.stemblock .content{text-align:center}
</style>
</head>
<body class="article">
<div id="header">
<h1>Hello, world!</h1>
</div>
<div id="content">
<div class="paragraph">
<p>Some <strong>strong</strong> text.</p>
</div>
</div>
<div id="footer">
<div id="footer-text">
Last updated 2024-01-01 00:00:00 UTC
</div>
</div>
</body>
</html>
`

func quietSettings(overrides map[string]any) markup.Settings {
	nop := zerolog.Nop()
	return markup.Settings{Overrides: overrides, Logger: &nop}
}

func newTestAdapter(t *testing.T, fake *commandtest.Fake, settings markup.Settings) markup.Adapter {
	t.Helper()
	adapter, err := NewKind(WithExecutor(fake)).New(settings)
	require.NoError(t, err)
	return adapter
}

func withContent(content string) string {
	return strings.Replace(asciidoctorOutput,
		"<div class=\"paragraph\">\n<p>Some <strong>strong</strong> text.</p>\n</div>", content, 1)
}

func TestArgs(t *testing.T) {
	fake := commandtest.New().Install("asciidoctor", commandtest.Respond("", "", nil))

	adapter := newTestAdapter(t, fake, quietSettings(nil)).(*Adapter)
	assert.Equal(t, []string{"-o", "-", "-a", "stem", "-a", "doctype=article", "--failure-level=FATAL", "-"}, adapter.Args())

	book := newTestAdapter(t, fake, quietSettings(map[string]any{SettingDoctype: "Book", markup.SettingMath: false})).(*Adapter)
	assert.Equal(t, []string{"-o", "-", "-a", "doctype=book", "--failure-level=FATAL", "-"}, book.Args())
}

func TestInvalidDoctype(t *testing.T) {
	_, err := NewKind(WithExecutor(commandtest.New())).New(quietSettings(map[string]any{SettingDoctype: "novel"}))
	assert.ErrorIs(t, err, markup.ErrConfiguration)
	assert.ErrorIs(t, err, markup.ErrInvalidSetting)
}

func TestConvertBasic(t *testing.T) {
	fake := commandtest.New().Install("asciidoctor", commandtest.Respond(asciidoctorOutput, "", nil))
	doc := newTestAdapter(t, fake, quietSettings(nil)).Convert(context.Background(), basicText)

	assert.Equal(t, "Hello, world!", doc.Title())
	assert.True(t, strings.HasPrefix(doc.Body(), `<div id="content">`))
	assert.Contains(t, doc.Body(), "<strong>strong</strong>")
	assert.NotContains(t, doc.Body(), "<h1")
	assert.NotContains(t, doc.Body(), "Last updated")
	assert.Contains(t, doc.Stylesheet(), ".stemblock .content{text-align:center}")
	assert.Contains(t, doc.Stylesheet(), "div.system-message")
	assert.Empty(t, doc.JavaScript())

	calls := fake.CallsTo("asciidoctor")
	require.Len(t, calls, 1)
	assert.Equal(t, basicText, calls[0].Stdin)
}

func TestMath(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "stem block", content: `<div class="stemblock"><div class="content">\[x^2\]</div></div>`},
		{name: "inline stem", content: `<div class="paragraph"><p>Area \(\pi r^2\).</p></div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := commandtest.New().Install("asciidoctor", commandtest.Respond(withContent(tt.content), "", nil))
			doc := newTestAdapter(t, fake, quietSettings(nil)).Convert(context.Background(), "stem:[x]")
			assert.Contains(t, doc.JavaScript(), "<script")

			off := newTestAdapter(t, fake, quietSettings(map[string]any{markup.SettingMath: false})).Convert(context.Background(), "stem:[x]")
			assert.Empty(t, off.JavaScript())
		})
	}

	literal := commandtest.New().Install("asciidoctor", commandtest.Respond(withContent(`<pre>\(not math\)</pre>`), "", nil))
	assert.Empty(t, newTestAdapter(t, literal, quietSettings(nil)).Convert(context.Background(), "....").JavaScript())
}

func TestWarnings(t *testing.T) {
	stderr := "asciidoctor: WARNING: <stdin>: line 3: section title out of sequence: expected level 1, got level 2\n"

	settings := quietSettings(nil)
	settings.BasePath = "/docs/guide.adoc"
	fake := commandtest.New().Install("asciidoctor", commandtest.Respond(asciidoctorOutput, stderr, nil))
	doc := newTestAdapter(t, fake, settings).Convert(context.Background(), basicText)

	require.Len(t, doc.Diagnostics(), 1)
	d := doc.Diagnostics()[0]
	assert.Equal(t, markup.SeverityWarning, d.Severity)
	assert.Equal(t, "/docs/guide.adoc", d.Source)
	assert.Equal(t, 3, d.Line)
	assert.Equal(t, "section title out of sequence: expected level 1, got level 2", d.Message)
	assert.Contains(t, doc.Body(), "System Message: WARNING/2")
	assert.Contains(t, doc.Body(), "/docs/guide.adoc")

	suppressed := newTestAdapter(t, fake, quietSettings(map[string]any{markup.SettingSuppressDiagnostics: true})).
		Convert(context.Background(), basicText)
	assert.NotContains(t, suppressed.Body(), "system-message")
	assert.Len(t, suppressed.Diagnostics(), 1)
}

func TestParseStderr(t *testing.T) {
	got := parseStderr("asciidoctor: ERROR: included.adoc: line 12: unterminated listing block\n"+
		"asciidoctor: INFO: possible invalid reference: intro\n"+
		"  detail\n", "<string>")

	require.Len(t, got, 2)
	assert.Equal(t, markup.Diagnostic{Severity: markup.SeverityError, Source: "included.adoc", Line: 12, Message: "unterminated listing block"}, got[0])
	assert.Equal(t, markup.Diagnostic{Severity: markup.SeverityInfo, Source: "<string>", Message: "possible invalid reference: intro\ndetail"}, got[1])
}

func TestConverterFailure(t *testing.T) {
	fake := commandtest.New().Install("asciidoctor", commandtest.Respond("", "asciidoctor: FATAL: <stdin>: line 1: boom\n", commandtest.ErrExit))
	doc := newTestAdapter(t, fake, quietSettings(nil)).Convert(context.Background(), "a <b>")

	assert.Contains(t, doc.Body(), "System Message: SEVERE/4")
	assert.Contains(t, doc.Body(), "<pre>a &lt;b&gt;</pre>")
	assert.Empty(t, doc.Title())
	require.Len(t, doc.Diagnostics(), 2)
	assert.Equal(t, 1, doc.Diagnostics()[0].Line)
}

func TestCustomCommandThroughRegistry(t *testing.T) {
	fake := commandtest.New().Install("/usr/local/bin/asciidoctor", commandtest.Respond(asciidoctorOutput, "", nil))
	reg, err := markup.NewRegistry(NewKind(WithExecutor(fake)))
	require.NoError(t, err)
	require.False(t, reg.IsAvailable(KindName))

	adapter, err := reg.ForKind("adoc", quietSettings(map[string]any{SettingAsciidoctorCommand: "/usr/local/bin/asciidoctor"}))
	require.NoError(t, err)
	doc := adapter.Convert(context.Background(), basicText)
	assert.Equal(t, "Hello, world!", doc.Title())
	assert.Len(t, fake.CallsTo("/usr/local/bin/asciidoctor"), 1)

	_, err = reg.ForKind("adoc", quietSettings(map[string]any{SettingAsciidoctorCommand: "asciidoctor-missing"}))
	assert.ErrorIs(t, err, markup.ErrKindUnavailable)
}

func TestIntegrationAsciidoctor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping asciidoctor integration test in short mode")
	}
	if _, err := exec.LookPath(DefaultCommand); err != nil {
		t.Skip("asciidoctor is not installed")
	}

	adapter, err := Kind.New(quietSettings(nil))
	require.NoError(t, err)

	doc := adapter.Convert(context.Background(), basicText)
	assert.Equal(t, "Hello, world!", doc.Title())
	assert.Contains(t, doc.Body(), "<strong>strong</strong>")
	assert.NotContains(t, doc.Body(), "<h1")
	assert.NotEmpty(t, doc.Stylesheet())
	assert.Empty(t, doc.JavaScript())
}
