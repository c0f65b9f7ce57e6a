package markdown

import (
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/rgonek/markups/markup"
)

type frontMatter struct {
	Title string `yaml:"title" toml:"title" json:"title"`
}

// splitFrontMatter removes a leading YAML or TOML front matter block and
// records its title. Invalid front matter is reported and left in place.
func (c *conversion) splitFrontMatter(text string) string {
	if !hasFrontMatter(text) {
		return text
	}

	var meta frontMatter
	rest, err := frontmatter.Parse(strings.NewReader(text), &meta)
	if err != nil {
		d := markup.Diagnostic{
			Severity: markup.SeverityWarning,
			Source:   c.diagrams.Source,
			Line:     1,
			Message:  "invalid front matter: " + err.Error(),
		}
		c.sink.Report(d)
		if c.sink.Reportable(d) {
			c.leading.WriteString(markup.RenderDiagnostic(d))
		}
		return text
	}

	if consumed := len(text) - len(rest); consumed > 0 {
		c.lineShift = strings.Count(text[:consumed], "\n")
	}
	c.title = strings.TrimSpace(meta.Title)
	return string(rest)
}

// hasFrontMatter reports whether text opens with a --- or +++ line that is
// closed later. A lone leading --- is a thematic break, not front matter.
func hasFrontMatter(text string) bool {
	first, rest, ok := strings.Cut(text, "\n")
	if !ok {
		return false
	}
	delim := strings.TrimRight(first, " \t\r")
	if delim != "---" && delim != "+++" {
		return false
	}
	for _, line := range strings.Split(rest, "\n") {
		if strings.TrimRight(line, " \t\r") == delim {
			return true
		}
	}
	return false
}
