package restructuredtext

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rgonek/markups/markup"
)

var (
	// <stdin>:12: (WARNING/2) Title underline too short.
	stderrPattern = regexp.MustCompile(`^(.*?):(?:(\d+):)? \(([A-Z]+)/(\d)\) (.*)$`)
	titlePattern  = regexp.MustCompile(`System Message: ([A-Z]+)/(\d)`)
)

// parseStderr turns the docutils warning stream into diagnostics. Lines that
// do not start a message continue the previous one.
func parseStderr(stderr, source string) []markup.Diagnostic {
	var out []markup.Diagnostic
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		m := stderrPattern.FindStringSubmatch(line)
		if m == nil {
			if len(out) > 0 {
				last := &out[len(out)-1]
				last.Message += "\n" + strings.TrimSpace(line)
			}
			continue
		}

		level, _ := strconv.Atoi(m[4])
		d := markup.Diagnostic{
			Severity: markup.Severity(level),
			Source:   m[1],
			Message:  m[5],
		}
		if named, ok := markup.ParseSeverity(m[3]); ok {
			d.Severity = named
		}
		if d.Source == "<stdin>" {
			d.Source = source
		}
		if m[2] != "" {
			d.Line, _ = strconv.Atoi(m[2])
		}
		out = append(out, d)
	}
	return out
}

// filterSystemMessages removes docutils system messages below threshold,
// along with the links pointing at them and the trailing messages section
// once it is empty.
func filterSystemMessages(scope *goquery.Selection, threshold markup.Severity) {
	scope.Find(".system-message").Each(func(_ int, s *goquery.Selection) {
		m := titlePattern.FindStringSubmatch(s.Find(".system-message-title").First().Text())
		if m == nil {
			return
		}
		level, _ := strconv.Atoi(m[2])
		if markup.Severity(level) >= threshold {
			return
		}
		if id, ok := s.Attr("id"); ok && id != "" {
			scope.Find(`a[href="#` + id + `"]`).Each(func(_ int, link *goquery.Selection) {
				if link.Contents().Length() == 0 {
					link.Remove()
					return
				}
				link.Contents().Unwrap()
			})
		}
		s.Remove()
	})

	scope.Find(".system-messages").Each(func(_ int, section *goquery.Selection) {
		if section.Find(".system-message").Length() == 0 {
			section.Remove()
		}
	})
}
