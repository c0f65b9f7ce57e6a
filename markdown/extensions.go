package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/rgonek/markups/markup"
)

var extensionRegistry = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"tables":        extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"autolink":      extension.Linkify,
	"tasklist":      extension.TaskList,
	"definition":    extension.DefinitionList,
	"footnote":      extension.Footnote,
	"typographer":   extension.Typographer,
	"cjk":           extension.CJK,
}

// ExtensionNames lists the names accepted by the extensions setting.
func ExtensionNames() []string {
	names := make([]string, 0, len(extensionRegistry))
	for name := range extensionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectExtensions(list string) ([]goldmark.Extender, error) {
	var extenders []goldmark.Extender
	seen := map[string]struct{}{}

	for _, name := range strings.Split(list, ",") {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}

		if _, ok := seen[key]; ok {
			continue
		}

		ext, ok := extensionRegistry[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown markdown extension %q", markup.ErrInvalidSetting, name)
		}

		extenders = append(extenders, ext)
		seen[key] = struct{}{}
	}

	return extenders, nil
}
