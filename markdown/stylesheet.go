package markdown

import (
	_ "embed"
	"fmt"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/rgonek/markups/markup"
)

//go:embed baseline.css
var baselineCSS string

// stylesheet returns the baseline rules followed by the chroma rules for
// style when highlighting is on.
func stylesheet(highlight bool, style string) (string, error) {
	if !highlight {
		return baselineCSS, nil
	}

	chromaStyle, ok := styles.Registry[strings.ToLower(style)]
	if !ok {
		return "", fmt.Errorf("%w: unknown highlight style %q", markup.ErrInvalidSetting, style)
	}

	var sb strings.Builder
	sb.WriteString(baselineCSS)
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&sb, chromaStyle); err != nil {
		return "", fmt.Errorf("writing highlight stylesheet: %w", err)
	}
	return sb.String(), nil
}
