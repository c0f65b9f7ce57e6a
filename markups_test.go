package markups

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgonek/markups/markdown"
	"github.com/rgonek/markups/markup"
)

func quiet() markup.Settings {
	nop := zerolog.Nop()
	return markup.Settings{Logger: &nop}
}

func TestBuiltinKinds(t *testing.T) {
	var names []string
	for _, kind := range Kinds() {
		names = append(names, kind.Name())
	}
	assert.Equal(t, []string{"markdown", "restructuredtext", "textile", "asciidoc"}, names)
}

func TestLookupAliases(t *testing.T) {
	tests := map[string]string{
		"md":       "markdown",
		"GFM":      "markdown",
		"rst":      "restructuredtext",
		"docutils": "restructuredtext",
		"textile":  "textile",
		"adoc":     "asciidoc",
	}
	for alias, want := range tests {
		t.Run(alias, func(t *testing.T) {
			kind, ok := Lookup(alias)
			require.True(t, ok)
			assert.Equal(t, want, kind.Name())
		})
	}
}

func TestMarkdownAlwaysAvailable(t *testing.T) {
	assert.True(t, IsAvailable("markdown"))
	assert.Contains(t, AvailableKinds(), markdown.Kind)
	assert.False(t, IsAvailable("nope"))
}

func TestForFilename(t *testing.T) {
	adapter, err := ForFilename("notes/README.md", quiet())
	require.NoError(t, err)

	doc := adapter.Convert(context.Background(), "# Hi\n\nSome *text*.")
	assert.Contains(t, doc.Body(), "<em>text</em>")
	assert.NotEmpty(t, doc.Stylesheet())
}

func TestForFilenameUnknownExtension(t *testing.T) {
	_, err := ForFilename("image.png", quiet())
	assert.ErrorIs(t, err, markup.ErrLookup)
	assert.ErrorIs(t, err, markup.ErrNoKindForFile)
	assert.ErrorIs(t, err, markup.ErrConfiguration)
}

func TestForKindUnknown(t *testing.T) {
	_, err := ForKind("wiki", quiet())
	assert.ErrorIs(t, err, markup.ErrUnknownKind)
}

func TestUnavailableKindsNeverYieldAdapters(t *testing.T) {
	for _, kind := range Kinds() {
		if kind.Available() {
			continue
		}
		adapter, err := ForKind(kind.Name(), quiet())
		assert.Nil(t, adapter, kind.Name())
		assert.ErrorIs(t, err, markup.ErrKindUnavailable)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(markdown.NewKind())
	assert.ErrorIs(t, err, markup.ErrDuplicateKind)
}
