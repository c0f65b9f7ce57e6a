// Package markups converts Markdown, reStructuredText, Textile and AsciiDoc
// to HTML through one interface.
//
// The package level functions use a process wide registry holding every
// built-in kind:
//
//	adapter, err := markups.ForFilename("README.rst", markup.Settings{})
//	if err != nil {
//		return err
//	}
//	doc := adapter.Convert(ctx, text)
//	fmt.Println(doc.Title(), doc.Body())
//
// Kinds whose external converter is not installed are still listed by Kinds
// but never yield adapters.
package markups

import (
	"github.com/rgonek/markups/asciidoc"
	"github.com/rgonek/markups/markdown"
	"github.com/rgonek/markups/markup"
	"github.com/rgonek/markups/restructuredtext"
	"github.com/rgonek/markups/textile"
)

// BuiltinKinds returns the kinds shipped with this module, in lookup
// priority order.
func BuiltinKinds() []*markup.Kind {
	return []*markup.Kind{
		markdown.Kind,
		restructuredtext.Kind,
		textile.Kind,
		asciidoc.Kind,
	}
}

// NewRegistry returns a registry holding the built-in kinds followed by
// extra.
func NewRegistry(extra ...*markup.Kind) (*markup.Registry, error) {
	return markup.NewRegistry(append(BuiltinKinds(), extra...)...)
}

var defaultRegistry = mustRegistry()

func mustRegistry() *markup.Registry {
	reg, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return reg
}

// Default returns the process wide registry.
func Default() *markup.Registry { return defaultRegistry }

// Register adds kind to the default registry.
func Register(kind *markup.Kind) error { return defaultRegistry.Register(kind) }

// Kinds returns every registered kind.
func Kinds() []*markup.Kind { return defaultRegistry.Kinds() }

// AvailableKinds returns the registered kinds whose converter is installed.
func AvailableKinds() []*markup.Kind { return defaultRegistry.AvailableKinds() }

// Lookup finds a kind by name or alias.
func Lookup(name string) (*markup.Kind, bool) { return defaultRegistry.Lookup(name) }

// IsAvailable reports whether the named kind exists and can convert.
func IsAvailable(name string) bool { return defaultRegistry.IsAvailable(name) }

// ForKind returns an adapter for the named kind.
func ForKind(name string, settings markup.Settings) (markup.Adapter, error) {
	return defaultRegistry.ForKind(name, settings)
}

// ForFilename returns an adapter for the kind claiming the extension of
// path. settings.BasePath defaults to path.
func ForFilename(path string, settings markup.Settings) (markup.Adapter, error) {
	return defaultRegistry.ForFilename(path, settings)
}
